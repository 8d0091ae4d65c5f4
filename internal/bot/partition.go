package bot

import (
	"errors"

	"go.mau.fi/whatsmeow/types"
)

var ErrInvalidBatchSize = errors.New("WhatsApp Mention Batch Size Must Be At Least 1")

// Partition splits an ordered list of identities into chunks of at most
// size elements, preserving input order. Only the last chunk may be
// shorter than size.
func Partition(items []types.JID, size int) ([][]types.JID, error) {
	if size <= 0 {
		return nil, ErrInvalidBatchSize
	}
	if len(items) == 0 {
		return nil, nil
	}

	batches := make([][]types.JID, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches, nil
}

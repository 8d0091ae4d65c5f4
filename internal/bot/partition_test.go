package bot

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.mau.fi/whatsmeow/types"
)

func makeJIDs(n int) []types.JID {
	jids := make([]types.JID, 0, n)
	for i := 0; i < n; i++ {
		jids = append(jids, types.NewJID(fmt.Sprintf("user%03d", i), types.DefaultUserServer))
	}
	return jids
}

func TestPartition_InvalidSize(t *testing.T) {
	for _, size := range []int{0, -1, -100} {
		_, err := Partition(makeJIDs(3), size)
		assert.ErrorIs(t, err, ErrInvalidBatchSize, "size %d", size)
	}
}

func TestPartition_Empty(t *testing.T) {
	batches, err := Partition(nil, 25)
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestPartition_OrderAndBounds(t *testing.T) {
	tests := []struct {
		n, size     int
		wantBatches int
		wantLast    int
	}{
		{n: 1, size: 1, wantBatches: 1, wantLast: 1},
		{n: 5, size: 25, wantBatches: 1, wantLast: 5},
		{n: 25, size: 25, wantBatches: 1, wantLast: 25},
		{n: 26, size: 25, wantBatches: 2, wantLast: 1},
		{n: 60, size: 25, wantBatches: 3, wantLast: 10},
		{n: 10, size: 1, wantBatches: 10, wantLast: 1},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d/size=%d", tt.n, tt.size), func(t *testing.T) {
			items := makeJIDs(tt.n)
			batches, err := Partition(items, tt.size)
			require.NoError(t, err)
			require.Len(t, batches, tt.wantBatches)

			var flattened []types.JID
			for i, batch := range batches {
				assert.LessOrEqual(t, len(batch), tt.size)
				if i < len(batches)-1 {
					assert.Len(t, batch, tt.size)
				}
				flattened = append(flattened, batch...)
			}
			assert.Len(t, batches[len(batches)-1], tt.wantLast)
			assert.Equal(t, items, flattened)
		})
	}
}

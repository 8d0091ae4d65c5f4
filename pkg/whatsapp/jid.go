package whatsapp

import "strings"

// DecomposeJID strips the server part and any leading plus sign from an
// identity, leaving the bare local part used for mention markers.
func DecomposeJID(id string) string {
	if strings.ContainsRune(id, '@') {
		buffers := strings.Split(id, "@")
		id = buffers[0]
	}

	if len(id) > 0 && id[0] == '+' {
		id = id[1:]
	}

	return strings.TrimSpace(id)
}

// MaskJIDForLog hides the last digits of an account JID in log lines.
func MaskJIDForLog(jid string) string {
	if len(jid) < 4 {
		return jid
	}
	return jid[0:len(jid)-4] + "xxxx"
}

package finger

// PageCursor tracks carry-over and progress across the pages of one session.
type PageCursor struct {
	PendingTail    []byte
	PagesRead      int
	RecordsDecoded int
}

// take returns payload prefixed with the pending tail and clears the tail.
func (c *PageCursor) take(payload []byte) []byte {
	if len(c.PendingTail) == 0 {
		return payload
	}
	buf := make([]byte, 0, len(c.PendingTail)+len(payload))
	buf = append(buf, c.PendingTail...)
	buf = append(buf, payload...)
	c.PendingTail = nil
	return buf
}

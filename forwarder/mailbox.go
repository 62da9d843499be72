package forwarder

import (
	"github.com/jd3nn1s/tirelog"
)

// mailbox hands records from the event loop to a forwarder goroutine. It
// holds at most one record and Forward never blocks.
type mailbox struct {
	fwdChan chan *tirelog.Record
}

func newMailbox() mailbox {
	return mailbox{fwdChan: make(chan *tirelog.Record, 1)}
}

func (m mailbox) Forward(rec *tirelog.Record) error {
	// copy the record as it is processed on another go-routine
	recCopy := *rec
	select {
	case m.fwdChan <- &recCopy:
	default:
		// if channel is full, skip
	}
	return nil
}

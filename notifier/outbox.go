package notifier

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/MrEthical07/clubAuth"
)

// Outbox writes one JSON [Message] per line.
type Outbox struct {
	mu  sync.Mutex
	enc *json.Encoder
	now func() time.Time
}

func NewOutbox(w io.Writer) *Outbox {
	return &Outbox{enc: json.NewEncoder(w), now: time.Now}
}

func (o *Outbox) Send(ctx context.Context, n clubAuth.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := newMessage(n, o.now())

	o.mu.Lock()
	defer o.mu.Unlock()
	return o.enc.Encode(msg)
}

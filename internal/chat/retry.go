package chat

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"time"
)

// permanentError stops withRetries from trying again.
type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

func permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err}
}

// randJitter spreads d by up to 250ms.
func randJitter(d time.Duration) time.Duration {
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		return d
	}
	return d + time.Duration(binary.BigEndian.Uint16(b[:])%250)*time.Millisecond
}

// withRetries runs fn up to attempts times with exponential backoff. It
// gives up early on a permanent error or when ctx is done.
func withRetries(ctx context.Context, attempts int, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	backoff := 500 * time.Millisecond
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		var perm permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if ctx.Err() != nil {
			return err
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return err
			case <-time.After(randJitter(backoff)):
			}
			backoff *= 2
			if backoff > 8*time.Second {
				backoff = 8 * time.Second
			}
		}
	}
	return err
}

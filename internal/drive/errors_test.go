package drive_test

import (
	"errors"
	"fmt"
	"testing"

	"drive-go/internal/drive"
)

func TestError_Is(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &drive.Error{Kind: drive.KindNotFound, Op: "get", ID: "x"})

	if !errors.Is(err, drive.ErrNotFound) {
		t.Error("errors.Is(NotFound) = false")
	}
	if errors.Is(err, drive.ErrForbidden) {
		t.Error("errors.Is(Forbidden) = true for a NotFound error")
	}

	expired := &drive.Error{Kind: drive.KindExpired}
	if !errors.Is(expired, drive.ErrInvalidToken) {
		t.Error("expired token does not match ErrInvalidToken")
	}
	if errors.Is(drive.ErrInvalidToken, drive.ErrExpired) {
		t.Error("invalid token matches ErrExpired")
	}
}

func TestError_Error(t *testing.T) {
	tests := []struct {
		err  *drive.Error
		want string
	}{
		{&drive.Error{Kind: drive.KindNotFound}, "not found"},
		{&drive.Error{Kind: drive.KindInvalidMove, Op: "move", ID: "a"}, "move: invalid move: a"},
		{&drive.Error{Kind: drive.KindLocked, Op: "unlock", Err: errors.New("wrong passphrase")}, "unlock: encryption key locked: wrong passphrase"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

package drive_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"drive-go/internal/drive"
)

func TestService_Share(t *testing.T) {
	t.Run("issue and validate", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.svc.SetLinkBase("https://drive.example.com/")
		ctx := context.Background()

		item := f.upload(t, alice, "", "a.txt", "a")
		sh, err := f.svc.Share(ctx, alice, item.ID, drive.ShareOptions{TTL: time.Hour, Note: "for bob"})
		if err != nil {
			t.Fatalf("Share() error = %v", err)
		}
		if sh.Token != "token-1" || sh.ItemName != "a.txt" || sh.Note != "for bob" {
			t.Errorf("Share() = %+v", sh)
		}
		if sh.ExpiresAt == nil || !sh.ExpiresAt.Equal(f.clock.Now().Add(time.Hour)) {
			t.Errorf("Share() expires_at = %v, want now+1h", sh.ExpiresAt)
		}
		wantLink := "https://drive.example.com/api/download/" + item.ID + "?token=token-1"
		if sh.Link != wantLink {
			t.Errorf("Share() link = %q, want %q", sh.Link, wantLink)
		}

		got, err := f.svc.Validate(ctx, sh.Token)
		if err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		if got != item.ID {
			t.Errorf("Validate() = %q, want %q", got, item.ID)
		}
	})

	t.Run("expiry", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()

		item := f.upload(t, alice, "", "a.txt", "a")
		sh, err := f.svc.Share(ctx, alice, item.ID, drive.ShareOptions{TTL: time.Hour})
		if err != nil {
			t.Fatalf("Share() error = %v", err)
		}

		f.clock.Advance(time.Hour - time.Nanosecond)
		if _, err := f.svc.Validate(ctx, sh.Token); err != nil {
			t.Errorf("Validate() just before expiry error = %v", err)
		}

		f.clock.Advance(time.Nanosecond)
		_, err = f.svc.Validate(ctx, sh.Token)
		if !errors.Is(err, drive.ErrExpired) {
			t.Errorf("Validate() at expiry error = %v, want ErrExpired", err)
		}
		if !errors.Is(err, drive.ErrInvalidToken) {
			t.Errorf("Validate() at expiry error = %v, want it to match ErrInvalidToken", err)
		}
	})

	t.Run("no ttl never expires", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()

		item := f.upload(t, alice, "", "a.txt", "a")
		sh, err := f.svc.Share(ctx, alice, item.ID, drive.ShareOptions{})
		if err != nil {
			t.Fatalf("Share() error = %v", err)
		}
		if sh.ExpiresAt != nil {
			t.Errorf("Share() expires_at = %v, want nil", sh.ExpiresAt)
		}
		f.clock.Advance(10 * 365 * 24 * time.Hour)
		if _, err := f.svc.Validate(ctx, sh.Token); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
	})

	t.Run("unknown tokens", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		for _, tok := range []string{"", "nope"} {
			_, err := f.svc.Validate(context.Background(), tok)
			if !errors.Is(err, drive.ErrInvalidToken) || errors.Is(err, drive.ErrExpired) {
				t.Errorf("Validate(%q) error = %v, want ErrInvalidToken", tok, err)
			}
		}
	})

	t.Run("only the owner can share", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		item := f.upload(t, alice, "", "a.txt", "a")
		_, err := f.svc.Share(context.Background(), bob, item.ID, drive.ShareOptions{})
		if !errors.Is(err, drive.ErrNotFound) {
			t.Errorf("Share() by other owner error = %v, want ErrNotFound", err)
		}
	})

	t.Run("token generator failure", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.tokens.Err = errors.New("entropy exhausted")

		item := f.upload(t, alice, "", "a.txt", "a")
		if _, err := f.svc.Share(context.Background(), alice, item.ID, drive.ShareOptions{}); err == nil {
			t.Error("Share() expected error")
		}
	})
}

func TestService_Revoke(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	item := f.upload(t, alice, "", "a.txt", "a")
	sh, err := f.svc.Share(ctx, alice, item.ID, drive.ShareOptions{})
	if err != nil {
		t.Fatalf("Share() error = %v", err)
	}

	if err := f.svc.Revoke(ctx, bob, sh.Token); !errors.Is(err, drive.ErrForbidden) {
		t.Errorf("Revoke() by other owner error = %v, want ErrForbidden", err)
	}
	if err := f.svc.Revoke(ctx, alice, sh.Token); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if err := f.svc.Revoke(ctx, alice, sh.Token); !errors.Is(err, drive.ErrNotFound) {
		t.Errorf("second Revoke() error = %v, want ErrNotFound", err)
	}
	if _, err := f.svc.Validate(ctx, sh.Token); !errors.Is(err, drive.ErrInvalidToken) {
		t.Errorf("Validate() after revoke error = %v, want ErrInvalidToken", err)
	}
}

func TestService_ListShares(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	a := f.upload(t, alice, "", "a.txt", "a")
	dir := f.mkdir(t, alice, "", "dir")
	bobs := f.upload(t, bob, "", "b.txt", "b")

	if _, err := f.svc.Share(ctx, alice, a.ID, drive.ShareOptions{TTL: time.Minute}); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(time.Second)
	if _, err := f.svc.Share(ctx, alice, dir.ID, drive.ShareOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Share(ctx, bob, bobs.ID, drive.ShareOptions{}); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(time.Hour)

	shares, err := f.svc.ListShares(ctx, alice)
	if err != nil {
		t.Fatalf("ListShares() error = %v", err)
	}
	if len(shares) != 2 {
		t.Fatalf("ListShares() = %d shares, want 2", len(shares))
	}
	if shares[0].ItemName != "dir" || !shares[0].IsDirectory || shares[0].Expired {
		t.Errorf("ListShares()[0] = %+v, want unexpired dir share", shares[0])
	}
	if shares[1].ItemName != "a.txt" || !shares[1].Expired {
		t.Errorf("ListShares()[1] = %+v, want expired a.txt share", shares[1])
	}
	if !strings.HasPrefix(shares[0].Link, "/api/download/") {
		t.Errorf("ListShares() link = %q, want host-relative", shares[0].Link)
	}

	n, err := f.svc.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired() error = %v", err)
	}
	if n != 1 {
		t.Errorf("PurgeExpired() = %d, want 1", n)
	}
	shares, err = f.svc.ListShares(ctx, alice)
	if err != nil {
		t.Fatalf("ListShares() error = %v", err)
	}
	if len(shares) != 1 {
		t.Errorf("ListShares() after purge = %d shares, want 1", len(shares))
	}
}

func TestService_Browse(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	shared := f.mkdir(t, alice, "", "shared")
	sub := f.mkdir(t, alice, shared.ID, "sub")
	f.upload(t, alice, shared.ID, "top.txt", "t")
	deep := f.upload(t, alice, sub.ID, "deep.txt", "d")
	outside := f.upload(t, alice, "", "outside.txt", "o")

	sh, err := f.svc.Share(ctx, alice, shared.ID, drive.ShareOptions{})
	if err != nil {
		t.Fatalf("Share() error = %v", err)
	}

	item, children, err := f.svc.Browse(ctx, sh.Token, "")
	if err != nil {
		t.Fatalf("Browse() error = %v", err)
	}
	if item.ID != shared.ID || strings.Join(names(children), ",") != "sub,top.txt" {
		t.Errorf("Browse() = %s %v", item.Name, names(children))
	}

	item, children, err = f.svc.Browse(ctx, sh.Token, deep.ID)
	if err != nil {
		t.Fatalf("Browse(deep) error = %v", err)
	}
	if item.ID != deep.ID || children != nil {
		t.Errorf("Browse(deep) = %s %v", item.Name, names(children))
	}

	if _, _, err := f.svc.Browse(ctx, sh.Token, outside.ID); !errors.Is(err, drive.ErrForbidden) {
		t.Errorf("Browse(outside) error = %v, want ErrForbidden", err)
	}
	if _, _, err := f.svc.Browse(ctx, sh.Token, "missing"); !errors.Is(err, drive.ErrNotFound) {
		t.Errorf("Browse(missing) error = %v, want ErrNotFound", err)
	}
}

package drive_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"drive-go/internal/drive"
	"drive-go/internal/testutil"
)

func TestService_Delete(t *testing.T) {
	t.Run("removes subtree shares and blobs", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()

		a := f.mkdir(t, alice, "", "a")
		x := f.upload(t, alice, a.ID, "x.txt", "xx")
		b := f.mkdir(t, alice, a.ID, "b")
		y := f.upload(t, alice, b.ID, "y.txt", "yyy")
		keep := f.upload(t, alice, "", "keep.txt", "k")

		for _, id := range []string{a.ID, y.ID} {
			if _, err := f.svc.Share(ctx, alice, id, drive.ShareOptions{}); err != nil {
				t.Fatalf("Share() error = %v", err)
			}
		}

		res, err := f.svc.Delete(ctx, alice, a.ID)
		if err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		want := drive.DeleteResult{Items: 4, Shares: 2, Blobs: 2}
		if *res != want {
			t.Errorf("Delete() = %+v, want %+v", *res, want)
		}

		for _, id := range []string{a.ID, x.ID, b.ID, y.ID} {
			if _, err := f.svc.Get(ctx, alice, id); !errors.Is(err, drive.ErrNotFound) {
				t.Errorf("Get(%s) after delete error = %v, want ErrNotFound", id, err)
			}
		}

		keys := f.blobs.Keys()
		if len(keys) != 1 || keys[0] != keep.StorageKey {
			t.Errorf("blobs after delete = %v, want only %s", keys, keep.StorageKey)
		}

		shares, err := f.svc.ListShares(ctx, alice)
		if err != nil {
			t.Fatalf("ListShares() error = %v", err)
		}
		if len(shares) != 0 {
			t.Errorf("ListShares() after delete = %d shares, want 0", len(shares))
		}
	})

	t.Run("blob failures are logged and skipped", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()

		dir := f.mkdir(t, alice, "", "dir")
		bad := f.upload(t, alice, dir.ID, "bad.bin", "bad")
		f.upload(t, alice, dir.ID, "good.bin", "good")
		f.blobs.FailDelete[bad.StorageKey] = true

		res, err := f.svc.Delete(ctx, alice, dir.ID)
		if err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if res.Items != 3 || res.Blobs != 1 || res.BlobFailures != 1 {
			t.Errorf("Delete() = %+v, want 3 items, 1 blob, 1 failure", *res)
		}
		if _, err := f.svc.Get(ctx, alice, bad.ID); !errors.Is(err, drive.ErrNotFound) {
			t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
		}
		if warns := f.logger.Entries("WARN"); len(warns) != 1 {
			t.Errorf("warnings = %d, want 1\n%s", len(warns), f.logger)
		}
	})

	t.Run("root cannot be deleted", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()

		root, err := f.svc.Root(ctx, alice)
		if err != nil {
			t.Fatalf("Root() error = %v", err)
		}
		if _, err := f.svc.Delete(ctx, alice, root.ID); !errors.Is(err, drive.ErrForbidden) {
			t.Errorf("Delete(root) error = %v, want ErrForbidden", err)
		}
	})

	t.Run("missing and foreign items", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()

		bobs := f.upload(t, bob, "", "b.txt", "b")
		if _, err := f.svc.Delete(ctx, alice, bobs.ID); !errors.Is(err, drive.ErrNotFound) {
			t.Errorf("Delete(foreign) error = %v, want ErrNotFound", err)
		}
		if _, err := f.svc.Delete(ctx, alice, "nope"); !errors.Is(err, drive.ErrNotFound) {
			t.Errorf("Delete(missing) error = %v, want ErrNotFound", err)
		}
		if len(f.blobs.DeleteCalls) != 0 {
			t.Errorf("blob deletes = %v, want none", f.blobs.DeleteCalls)
		}
	})

	t.Run("deep tree", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		top := f.mkdir(t, alice, "", "d0")
		parent := top.ID
		for i := 1; i < 200; i++ {
			parent = f.mkdir(t, alice, parent, "d").ID
		}

		res, err := f.svc.Delete(context.Background(), alice, top.ID)
		if err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if res.Items != 200 {
			t.Errorf("Delete() items = %d, want 200", res.Items)
		}
	})
}

func TestService_Move(t *testing.T) {
	setup := func(t *testing.T) (*fixture, *drive.Item, *drive.Item, *drive.Item) {
		t.Helper()
		f := newFixture(t)
		a := f.mkdir(t, alice, "", "a")
		b := f.mkdir(t, alice, a.ID, "b")
		c := f.mkdir(t, alice, b.ID, "c")
		return f, a, b, c
	}

	t.Run("moves into another directory", func(t *testing.T) {
		t.Parallel()
		f, a, _, c := setup(t)
		ctx := context.Background()

		other := f.mkdir(t, alice, "", "other")
		moved, err := f.svc.Move(ctx, alice, a.ID, other.ID)
		if err != nil {
			t.Fatalf("Move() error = %v", err)
		}
		if moved.ParentID != other.ID {
			t.Errorf("Move() parent = %q, want %q", moved.ParentID, other.ID)
		}

		chain, err := f.svc.Path(ctx, alice, c.ID)
		if err != nil {
			t.Fatalf("Path() error = %v", err)
		}
		if got := len(chain); got != 5 {
			t.Errorf("Path() length = %d, want 5 (%v)", got, names(chain))
		}
	})

	t.Run("empty destination means root", func(t *testing.T) {
		t.Parallel()
		f, _, _, c := setup(t)
		ctx := context.Background()

		moved, err := f.svc.Move(ctx, alice, c.ID, "")
		if err != nil {
			t.Fatalf("Move() error = %v", err)
		}
		root, err := f.svc.Root(ctx, alice)
		if err != nil {
			t.Fatalf("Root() error = %v", err)
		}
		if moved.ParentID != root.ID {
			t.Errorf("Move() parent = %q, want root %q", moved.ParentID, root.ID)
		}
	})

	t.Run("rejects cycles", func(t *testing.T) {
		t.Parallel()
		f, a, b, c := setup(t)
		ctx := context.Background()

		tests := []struct {
			name string
			id   string
			dest string
		}{
			{"into itself", a.ID, a.ID},
			{"into child", a.ID, b.ID},
			{"into grandchild", a.ID, c.ID},
		}
		for _, tt := range tests {
			if _, err := f.svc.Move(ctx, alice, tt.id, tt.dest); !errors.Is(err, drive.ErrInvalidMove) {
				t.Errorf("Move() %s error = %v, want ErrInvalidMove", tt.name, err)
			}
		}

		got, err := f.svc.Get(ctx, alice, a.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.ParentID == b.ID || got.ParentID == c.ID || got.ParentID == a.ID {
			t.Errorf("failed move changed parent to %q", got.ParentID)
		}
	})

	t.Run("root cannot move", func(t *testing.T) {
		t.Parallel()
		f, a, _, _ := setup(t)
		ctx := context.Background()

		root, err := f.svc.Root(ctx, alice)
		if err != nil {
			t.Fatalf("Root() error = %v", err)
		}
		if _, err := f.svc.Move(ctx, alice, root.ID, a.ID); !errors.Is(err, drive.ErrInvalidMove) {
			t.Errorf("Move(root) error = %v, want ErrInvalidMove", err)
		}
	})

	t.Run("bad destinations", func(t *testing.T) {
		t.Parallel()
		f, a, _, _ := setup(t)
		ctx := context.Background()

		file := f.upload(t, alice, "", "f.txt", "f")
		bobs := f.mkdir(t, bob, "", "bobs")

		for _, dest := range []string{"missing", file.ID, bobs.ID} {
			if _, err := f.svc.Move(ctx, alice, a.ID, dest); !errors.Is(err, drive.ErrParentNotFound) {
				t.Errorf("Move() to %q error = %v, want ErrParentNotFound", dest, err)
			}
		}
		if _, err := f.svc.Move(ctx, bob, a.ID, bobs.ID); !errors.Is(err, drive.ErrNotFound) {
			t.Errorf("Move() of foreign item error = %v, want ErrNotFound", err)
		}
	})
}

// A delete and a move that race on the same subtree must leave no item whose
// parent is gone, whichever one commits first.
func TestService_ConcurrentDeleteAndMove(t *testing.T) {
	store := testutil.NewTestFileStore(t)
	blobs := testutil.NewTestBlobStore()
	svc := drive.NewService(store, blobs, drive.NewNopLogger(), testutil.FixedClock(), drive.UUIDGenerator{}, testutil.NewStubTokenGenerator())
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		target, err := svc.Mkdir(ctx, alice, "", "target")
		if err != nil {
			t.Fatalf("Mkdir() error = %v", err)
		}
		if _, err := svc.Upload(ctx, alice, target.ID, "inner.txt", strings.NewReader("x")); err != nil {
			t.Fatalf("Upload() error = %v", err)
		}
		mover, err := svc.Mkdir(ctx, alice, "", "mover")
		if err != nil {
			t.Fatalf("Mkdir() error = %v", err)
		}

		var wg sync.WaitGroup
		var delErr, moveErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, delErr = svc.Delete(ctx, alice, target.ID)
		}()
		go func() {
			defer wg.Done()
			_, moveErr = svc.Move(ctx, alice, mover.ID, target.ID)
		}()
		wg.Wait()

		if delErr != nil {
			t.Fatalf("Delete() error = %v", delErr)
		}
		if moveErr != nil && !errors.Is(moveErr, drive.ErrParentNotFound) {
			t.Fatalf("Move() error = %v, want nil or ErrParentNotFound", moveErr)
		}

		got, err := svc.Get(ctx, alice, mover.ID)
		switch {
		case moveErr == nil:
			// move committed first, so the delete took mover with it
			if !errors.Is(err, drive.ErrNotFound) {
				t.Fatalf("Get(mover) error = %v, want ErrNotFound", err)
			}
		case err != nil:
			t.Fatalf("Get(mover) error = %v", err)
		default:
			if _, err := svc.Get(ctx, alice, got.ParentID); err != nil {
				t.Fatalf("mover parent %s: %v", got.ParentID, err)
			}
		}
	}
}

func TestService_ConcurrentDeleteAndMoveSameItem(t *testing.T) {
	store := testutil.NewTestFileStore(t)
	svc := drive.NewService(store, testutil.NewTestBlobStore(), drive.NewNopLogger(), testutil.FixedClock(), drive.UUIDGenerator{}, testutil.NewStubTokenGenerator())
	ctx := context.Background()

	dest, err := svc.Mkdir(ctx, alice, "", "dest")
	if err != nil {
		t.Fatalf("Mkdir() error = %v", err)
	}

	for i := 0; i < 20; i++ {
		x, err := svc.Mkdir(ctx, alice, "", "x")
		if err != nil {
			t.Fatalf("Mkdir() error = %v", err)
		}

		var wg sync.WaitGroup
		var delErr, moveErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, delErr = svc.Delete(ctx, alice, x.ID)
		}()
		go func() {
			defer wg.Done()
			_, moveErr = svc.Move(ctx, alice, x.ID, dest.ID)
		}()
		wg.Wait()

		// The delete always wins in the end; the move either ran first or
		// found nothing to move.
		if delErr != nil {
			t.Fatalf("Delete() error = %v", delErr)
		}
		if moveErr != nil && !errors.Is(moveErr, drive.ErrNotFound) {
			t.Fatalf("Move() error = %v, want nil or ErrNotFound", moveErr)
		}
		if _, err := svc.Get(ctx, alice, x.ID); !errors.Is(err, drive.ErrNotFound) {
			t.Fatalf("Get() after race error = %v, want ErrNotFound", err)
		}
	}

	left, err := svc.List(ctx, alice, dest.ID)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(left) != 0 {
		t.Errorf("dest still holds %v", names(left))
	}
}

package view_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"procodus.dev/thermobot/internal/view"
)

// fakeSurface is an in-memory presentation surface. It hands out sequential
// message ids and can be told to fail individual operations.
type fakeSurface struct {
	mu sync.Mutex

	editErr   error
	deleteErr error
	sendErr   error

	edits   int
	deletes int
	sends   int

	nextID int
	last   view.Content
}

func (f *fakeSurface) Send(_ context.Context, userID string, c view.Content) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sends++
	if f.sendErr != nil {
		return "", "", f.sendErr
	}

	f.nextID++
	f.last = c
	return fmt.Sprintf("%d", f.nextID), "chat-" + userID, nil
}

func (f *fakeSurface) Edit(_ context.Context, _, _ string, c view.Content) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.edits++
	if f.editErr != nil {
		return f.editErr
	}
	f.last = c
	return nil
}

func (f *fakeSurface) Delete(_ context.Context, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deletes++
	return f.deleteErr
}

var _ = Describe("Reconciler", func() {
	var (
		logger     *slog.Logger
		views      *view.Views
		surface    *fakeSurface
		reconciler *view.Reconciler
		ctx        context.Context
		content    view.Content
	)

	BeforeEach(func() {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
		ctx = context.Background()

		var err error
		views, err = view.NewViews(&view.ViewsConfig{
			Logger: logger,
			Path:   filepath.Join(GinkgoT().TempDir(), "users.csv"),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(views.Register("u1")).To(Succeed())

		surface = &fakeSurface{}

		reconciler, err = view.NewReconciler(&view.ReconcilerConfig{
			Logger:  logger,
			Views:   views,
			Surface: surface,
		})
		Expect(err).NotTo(HaveOccurred())

		content = view.Content{Text: "hello", Keyboard: [][]view.Button{{{Label: "x", Token: "list,u1"}}}}
	})

	Describe("NewReconciler", func() {
		It("should validate its configuration", func() {
			_, err := view.NewReconciler(nil)
			Expect(err).To(HaveOccurred())

			_, err = view.NewReconciler(&view.ReconcilerConfig{Logger: logger, Views: views})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("surface"))
		})
	})

	Context("when the user has no previous view", func() {
		It("should send a fresh view and record it", func() {
			Expect(reconciler.Render(ctx, "u1", content)).To(Succeed())

			Expect(surface.edits).To(BeZero())
			Expect(surface.sends).To(Equal(1))

			uv, ok := views.Find("u1")
			Expect(ok).To(BeTrue())
			Expect(uv.LastMessageID).To(Equal("1"))
			Expect(uv.ChatID).To(Equal("chat-u1"))
		})
	})

	Context("when the user already has a view", func() {
		BeforeEach(func() {
			Expect(reconciler.Render(ctx, "u1", content)).To(Succeed())
		})

		It("should edit in place without sending", func() {
			updated := view.Content{Text: "hello again"}
			Expect(reconciler.Render(ctx, "u1", updated)).To(Succeed())

			Expect(surface.edits).To(Equal(1))
			Expect(surface.sends).To(Equal(1))
			Expect(surface.last.Text).To(Equal("hello again"))
		})

		It("should treat an unchanged edit as success", func() {
			surface.editErr = view.ErrNotModified

			Expect(reconciler.Render(ctx, "u1", content)).To(Succeed())
			Expect(reconciler.Render(ctx, "u1", content)).To(Succeed())

			Expect(surface.sends).To(Equal(1))
			uv, _ := views.Find("u1")
			Expect(uv.LastMessageID).To(Equal("1"))
		})

		It("should fall back to delete-and-resend when the edit fails", func() {
			surface.editErr = errors.New("message too old")

			Expect(reconciler.Render(ctx, "u1", content)).To(Succeed())

			Expect(surface.deletes).To(Equal(1))
			Expect(surface.sends).To(Equal(2))

			uv, _ := views.Find("u1")
			Expect(uv.LastMessageID).To(Equal("2"))
		})

		It("should proceed when deleting the stale view fails", func() {
			surface.editErr = errors.New("message too old")
			surface.deleteErr = errors.New("already gone")

			Expect(reconciler.Render(ctx, "u1", content)).To(Succeed())

			uv, _ := views.Find("u1")
			Expect(uv.LastMessageID).To(Equal("2"))
		})

		It("should leave state untouched when the resend also fails", func() {
			surface.editErr = errors.New("message too old")
			surface.sendErr = errors.New("surface down")

			err := reconciler.Render(ctx, "u1", content)
			Expect(err).To(HaveOccurred())

			uv, _ := views.Find("u1")
			Expect(uv.LastMessageID).To(Equal("1"))
			Expect(uv.ChatID).To(Equal("chat-u1"))
		})
	})
})

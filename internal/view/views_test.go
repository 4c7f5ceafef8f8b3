package view_test

import (
	"log/slog"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"procodus.dev/thermobot/internal/view"
)

var _ = Describe("Views", func() {
	var (
		logger *slog.Logger
		path   string
		views  *view.Views
	)

	BeforeEach(func() {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
		path = filepath.Join(GinkgoT().TempDir(), "users.csv")

		var err error
		views, err = view.NewViews(&view.ViewsConfig{
			Logger: logger,
			Path:   path,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewViews", func() {
		It("should return error when config is nil", func() {
			v, err := view.NewViews(nil)
			Expect(err).To(HaveOccurred())
			Expect(v).To(BeNil())
		})

		It("should return error when logger is nil", func() {
			v, err := view.NewViews(&view.ViewsConfig{Path: "x"})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("logger"))
			Expect(v).To(BeNil())
		})

		It("should return error when path is empty", func() {
			v, err := view.NewViews(&view.ViewsConfig{Logger: logger})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("path"))
			Expect(v).To(BeNil())
		})
	})

	Describe("Find", func() {
		It("should report absence for a user that never rendered", func() {
			_, ok := views.Find("u1")
			Expect(ok).To(BeFalse())
		})
	})

	Describe("Register", func() {
		It("should create a user with no rendered view", func() {
			Expect(views.Register("u1")).To(Succeed())

			uv, ok := views.Find("u1")
			Expect(ok).To(BeTrue())
			Expect(uv.LastMessageID).To(BeEmpty())
			Expect(uv.ChatID).To(BeEmpty())
		})

		It("should be idempotent", func() {
			Expect(views.Register("u1")).To(Succeed())
			Expect(views.SetLast("u1", "10", "20")).To(Succeed())
			Expect(views.Register("u1")).To(Succeed())

			uv, _ := views.Find("u1")
			Expect(uv.LastMessageID).To(Equal("10"))
		})
	})

	Describe("SetLast", func() {
		It("should upsert the last view identities", func() {
			Expect(views.Register("u1")).To(Succeed())
			Expect(views.SetLast("u1", "10", "20")).To(Succeed())
			Expect(views.SetLast("u1", "11", "20")).To(Succeed())

			uv, _ := views.Find("u1")
			Expect(uv.LastMessageID).To(Equal("11"))
			Expect(uv.ChatID).To(Equal("20"))
		})

		It("should fail for an unregistered user", func() {
			err := views.SetLast("ghost", "1", "2")
			Expect(err).To(MatchError(view.ErrNotRegistered))
		})
	})

	Describe("Load", func() {
		It("should round-trip the table through a fresh instance", func() {
			Expect(views.Register("u1")).To(Succeed())
			Expect(views.Register("u2")).To(Succeed())
			Expect(views.SetLast("u1", "100", "200")).To(Succeed())

			fresh, err := view.NewViews(&view.ViewsConfig{
				Logger: logger,
				Path:   path,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(fresh.Load()).To(Succeed())

			uv, ok := fresh.Find("u1")
			Expect(ok).To(BeTrue())
			Expect(uv.LastMessageID).To(Equal("100"))
			Expect(uv.ChatID).To(Equal("200"))

			uv2, ok := fresh.Find("u2")
			Expect(ok).To(BeTrue())
			Expect(uv2.LastMessageID).To(BeEmpty())
		})

		It("should treat an absent file as an empty table", func() {
			fresh, err := view.NewViews(&view.ViewsConfig{
				Logger: logger,
				Path:   filepath.Join(GinkgoT().TempDir(), "missing.csv"),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(fresh.Load()).To(Succeed())
		})
	})
})

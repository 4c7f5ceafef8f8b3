package store_test

import (
	"log/slog"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"procodus.dev/thermobot/internal/store"
)

var _ = Describe("Registry", func() {
	var (
		logger   *slog.Logger
		registry *store.Registry
	)

	BeforeEach(func() {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))

		var err error
		registry, err = store.NewRegistry(&store.RegistryConfig{
			Logger: logger,
			Dir:    GinkgoT().TempDir(),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewRegistry", func() {
		It("should return error when config is nil", func() {
			r, err := store.NewRegistry(nil)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("config cannot be nil"))
			Expect(r).To(BeNil())
		})

		It("should return error when logger is nil", func() {
			r, err := store.NewRegistry(&store.RegistryConfig{Dir: "x"})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("logger"))
			Expect(r).To(BeNil())
		})

		It("should return error when directory is empty", func() {
			r, err := store.NewRegistry(&store.RegistryConfig{Logger: logger})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("directory"))
			Expect(r).To(BeNil())
		})
	})

	Describe("Add", func() {
		It("should write the registration as the first reading", func() {
			sensor := store.NewSensor("A1", "Kitchen", 21.5, 40.0)
			Expect(registry.Add(sensor)).To(Succeed())

			records := sensor.Records()
			Expect(records).To(HaveLen(1))
			Expect(records[0].Name).To(Equal("Kitchen"))
			Expect(records[0].Temperature).To(Equal(21.5))
			Expect(records[0].Humidity).To(Equal(40.0))
		})

		It("should reject a duplicate identity", func() {
			Expect(registry.Add(store.NewSensor("dup", "One", 1, 1))).To(Succeed())

			err := registry.Add(store.NewSensor("dup", "Two", 2, 2))
			Expect(err).To(MatchError(store.ErrExists))
		})
	})

	Describe("Update", func() {
		It("should delegate to the sensor and persist", func() {
			Expect(registry.Add(store.NewSensor("A1", "Kitchen", 21.5, 40.0))).To(Succeed())
			Expect(registry.Update("A1", 22.0, 40.0, "Kitchen")).To(Succeed())

			sensor, ok := registry.Find("A1")
			Expect(ok).To(BeTrue())
			Expect(sensor.Temperature()).To(Equal(22.0))
			Expect(sensor.Records()).To(HaveLen(2))
		})

		It("should be a no-op for an unknown identity", func() {
			Expect(registry.Add(store.NewSensor("A1", "Kitchen", 21.5, 40.0))).To(Succeed())
			before := registry.List()

			err := registry.Update("ghost", 1.0, 2.0, "Ghost")
			Expect(err).To(MatchError(store.ErrNotFound))

			after := registry.List()
			Expect(after).To(HaveLen(len(before)))
			_, ok := registry.Find("ghost")
			Expect(ok).To(BeFalse())
		})
	})

	Describe("Find", func() {
		It("should report absence without error", func() {
			_, ok := registry.Find("nobody")
			Expect(ok).To(BeFalse())
		})
	})

	Describe("List", func() {
		It("should preserve registration order", func() {
			Expect(registry.Add(store.NewSensor("b", "Bedroom", 1, 1))).To(Succeed())
			Expect(registry.Add(store.NewSensor("a", "Attic", 2, 2))).To(Succeed())
			Expect(registry.Add(store.NewSensor("c", "Cellar", 3, 3))).To(Succeed())

			ids := make([]string, 0, 3)
			for _, s := range registry.List() {
				ids = append(ids, s.ID())
			}
			Expect(ids).To(Equal([]string{"b", "a", "c"}))
		})

		It("should not observe later registrations through the snapshot", func() {
			Expect(registry.Add(store.NewSensor("a", "Attic", 1, 1))).To(Succeed())

			snapshot := registry.List()
			Expect(registry.Add(store.NewSensor("b", "Bedroom", 2, 2))).To(Succeed())

			Expect(snapshot).To(HaveLen(1))
			Expect(registry.List()).To(HaveLen(2))
		})
	})
})

package ingest

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-telegram/bot"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"procodus.dev/thermobot/internal/store"
	"procodus.dev/thermobot/internal/view"
)

// fakeBotAPI emulates the handful of Bot API methods the server calls.
type fakeBotAPI struct {
	mu              sync.Mutex
	nextMsgID       int64
	editFail        bool
	editNotModified bool
	sends           int
	edits           int
	deletes         int
	answers         int
	webhooks        []string
	lastText        string
}

func (f *fakeBotAPI) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		_ = r.ParseMultipartForm(1 << 20)

		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		switch method {
		case "sendMessage":
			f.sends++
			f.nextMsgID++
			f.lastText = r.FormValue("text")
			chatID := r.FormValue("chat_id")
			fmt.Fprintf(w, `{"ok":true,"result":{"message_id":%d,"chat":{"id":%s}}}`, f.nextMsgID, chatID)
		case "editMessageText":
			f.edits++
			if f.editFail {
				fmt.Fprint(w, `{"ok":false,"error_code":400,"description":"Bad Request: message to edit not found"}`)
				return
			}
			if f.editNotModified {
				fmt.Fprint(w, `{"ok":false,"error_code":400,"description":"Bad Request: message is not modified: specified new message content and reply markup are exactly the same"}`)
				return
			}
			f.lastText = r.FormValue("text")
			msgID := r.FormValue("message_id")
			fmt.Fprintf(w, `{"ok":true,"result":{"message_id":%s,"chat":{"id":1}}}`, msgID)
		case "deleteMessage":
			f.deletes++
			fmt.Fprint(w, `{"ok":true,"result":true}`)
		case "answerCallbackQuery":
			f.answers++
			fmt.Fprint(w, `{"ok":true,"result":true}`)
		case "setWebhook":
			f.webhooks = append(f.webhooks, r.FormValue("url"))
			fmt.Fprint(w, `{"ok":true,"result":true}`)
		default:
			fmt.Fprint(w, `{"ok":false,"error_code":404,"description":"Not Found: method not found"}`)
		}
	})
}

var _ = Describe("HTTP handlers", func() {
	var (
		logger   *slog.Logger
		api      *fakeBotAPI
		apiSrv   *httptest.Server
		server   *Server
		registry *store.Registry
		views    *view.Views
		mux      *http.ServeMux
	)

	BeforeEach(func() {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))

		api = &fakeBotAPI{}
		apiSrv = httptest.NewServer(api.handler())
		DeferCleanup(apiSrv.Close)

		var err error
		registry, err = store.NewRegistry(&store.RegistryConfig{
			Logger: logger,
			Dir:    GinkgoT().TempDir(),
		})
		Expect(err).NotTo(HaveOccurred())

		views, err = view.NewViews(&view.ViewsConfig{
			Logger: logger,
			Path:   filepath.Join(GinkgoT().TempDir(), "users.csv"),
		})
		Expect(err).NotTo(HaveOccurred())

		b, err := bot.New("test-token",
			bot.WithServerURL(apiSrv.URL),
			bot.WithSkipGetMe(),
		)
		Expect(err).NotTo(HaveOccurred())

		surface, err := NewTelegramSurface(b)
		Expect(err).NotTo(HaveOccurred())

		reconciler, err := view.NewReconciler(&view.ReconcilerConfig{
			Logger:  logger,
			Views:   views,
			Surface: surface,
		})
		Expect(err).NotTo(HaveOccurred())

		dispatcher, err := view.NewDispatcher(&view.DispatcherConfig{
			Logger:     logger,
			Registry:   registry,
			Views:      views,
			Reconciler: reconciler,
		})
		Expect(err).NotTo(HaveOccurred())

		server = &Server{
			logger:     logger,
			config:     &ServerConfig{WebhookURL: "https://example.test/hook"},
			registry:   registry,
			views:      views,
			dispatcher: dispatcher,
			bot:        b,
		}
		mux = server.setupRoutes()
	})

	post := func(path, contentType, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec
	}

	Describe("POST /termometer", func() {
		It("should create an unseen sensor", func() {
			rec := post("/termometer", "application/json",
				`{"id":"A1","name":"Kitchen","temperature":21.5,"humidity":40.0}`)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(Equal("Data received"))

			sensor, ok := registry.Find("A1")
			Expect(ok).To(BeTrue())
			Expect(sensor.Records()).To(HaveLen(1))
		})

		It("should update a seen sensor", func() {
			post("/termometer", "application/json",
				`{"id":"A1","name":"Kitchen","temperature":21.5,"humidity":40.0}`)
			rec := post("/termometer", "application/json",
				`{"id":"A1","name":"Kitchen","temperature":22.0,"humidity":40.0}`)

			Expect(rec.Code).To(Equal(http.StatusOK))

			sensor, _ := registry.Find("A1")
			Expect(sensor.Temperature()).To(Equal(22.0))
			Expect(sensor.Records()).To(HaveLen(2))
		})

		It("should reject a reading without an id", func() {
			rec := post("/termometer", "application/json",
				`{"name":"Kitchen","temperature":21.5,"humidity":40.0}`)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(registry.List()).To(BeEmpty())
		})

		It("should reject unparseable payloads", func() {
			rec := post("/termometer", "application/json", `{"id":`)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("should reject an id that escapes the records directory", func() {
			rec := post("/termometer", "application/json",
				`{"id":"../users","name":"Kitchen","temperature":21.5,"humidity":40.0}`)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(registry.List()).To(BeEmpty())
		})
	})

	Describe("POST / (webhook)", func() {
		BeforeEach(func() {
			post("/termometer", "application/json",
				`{"id":"A1","name":"Kitchen","temperature":22.0,"humidity":40.0}`)
		})

		It("should reject non-JSON requests", func() {
			rec := post("/", "text/plain", "hello")
			Expect(rec.Code).To(Equal(http.StatusForbidden))
		})

		It("should render the list for a /start message", func() {
			rec := post("/", "application/json",
				`{"update_id":1,"message":{"message_id":5,"from":{"id":7},"chat":{"id":7},"text":"/start"}}`)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(api.sends).To(Equal(1))
			Expect(api.lastText).To(Equal("Select a termometer:"))

			uv, ok := views.Find("7")
			Expect(ok).To(BeTrue())
			Expect(uv.LastMessageID).NotTo(BeEmpty())
			Expect(uv.ChatID).To(Equal("7"))
		})

		It("should render the detail screen for a navigation callback", func() {
			post("/", "application/json",
				`{"update_id":1,"message":{"message_id":5,"from":{"id":7},"chat":{"id":7},"text":"/start"}}`)

			rec := post("/", "application/json",
				`{"update_id":2,"callback_query":{"id":"cb1","from":{"id":7},"data":"detail,7,A1"}}`)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(api.edits).To(Equal(1))
			Expect(api.lastText).To(ContainSubstring("22.00"))
			Expect(api.answers).To(Equal(1))
		})

		It("should replace the view when the edit fails", func() {
			post("/", "application/json",
				`{"update_id":1,"message":{"message_id":5,"from":{"id":7},"chat":{"id":7},"text":"/start"}}`)
			before, _ := views.Find("7")

			api.editFail = true
			post("/", "application/json",
				`{"update_id":2,"callback_query":{"id":"cb1","from":{"id":7},"data":"detail,7,A1"}}`)

			Expect(api.deletes).To(Equal(1))
			Expect(api.sends).To(Equal(2))

			after, _ := views.Find("7")
			Expect(after.LastMessageID).NotTo(Equal(before.LastMessageID))
		})

		It("should acknowledge unparseable tokens without action", func() {
			rec := post("/", "application/json",
				`{"update_id":3,"callback_query":{"id":"cb2","from":{"id":7},"data":"term_old_format"}}`)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(api.sends).To(BeZero())
			Expect(api.answers).To(Equal(1))
		})
	})

	Describe("GET /setup", func() {
		It("should register the configured webhook URL", func() {
			req := httptest.NewRequest(http.MethodGet, "/setup", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring("https://example.test/hook"))
			Expect(api.webhooks).To(ConsistOf("https://example.test/hook"))
		})
	})

	Describe("GET /health", func() {
		It("should report OK", func() {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(Equal("OK"))
		})
	})
})

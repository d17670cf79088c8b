package mockbackend

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/google/uuid"
	"github.com/programme-lv/contest-client/auth"
	"github.com/programme-lv/contest-client/httpjson"
	"github.com/programme-lv/contest-client/logger"
	"github.com/programme-lv/contest-client/srvcerror"
	"github.com/programme-lv/contest-client/translations"
)

type Options struct {
	JWTKey     []byte
	StageDelay time.Duration
	// submissions per user per window, 0 disables the limit
	RateLimit       int
	RateLimitWindow time.Duration
	// level of request logs
	LogLevel slog.Level
	Logger   *slog.Logger
	Clock    func() time.Time
	Origins  []string
}

// Server is an in-memory stand-in for the contest backend
type Server struct {
	store     *Store
	judge     *Judge
	limiter   *rateLimiter
	validator *translations.Validator
	jwtKey    []byte
	logger    *slog.Logger
	now       func() time.Time
	origins   []string
	router    *chi.Mux

	pingInterval time.Duration
}

func NewServer(store *Store, opts Options) (*Server, error) {
	log := opts.Logger
	var judgeLog *slog.Logger
	if log == nil {
		log = slog.Default().With("module", "mock")
	} else {
		judgeLog = log.With("component", "judge")
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	origins := opts.Origins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "https://programme.lv"}
	}
	validator, err := translations.NewValidator("en")
	if err != nil {
		return nil, err
	}

	s := &Server{
		store:        store,
		judge:        NewJudge(store, opts.StageDelay, judgeLog),
		limiter:      newRateLimiter(opts.RateLimit, opts.RateLimitWindow),
		validator:    validator,
		jwtKey:       opts.JWTKey,
		logger:       log,
		now:          now,
		origins:      origins,
		router:       chi.NewRouter(),
		pingInterval: 15 * time.Second,
	}

	reqLogger := httplog.NewLogger("contest-mock", httplog.Options{
		LogLevel:         opts.LogLevel,
		Concise:          true,
		RequestHeaders:   true,
		MessageFieldName: "message",
		Tags: map[string]string{
			"env": "dev",
		},
	})
	s.router.Use(httplog.RequestLogger(reqLogger))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           3000,
	}))
	s.router.Use(s.requestID)
	s.router.Use(auth.GetJwtAuthMiddleware(opts.JWTKey))

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.router
	r.Post("/api/auth/login", s.login)
	r.Get("/api/cases", s.listCases)
	r.Get("/api/contests/{contestId}", s.getContest)
	r.Get("/api/leaderboard/{contestId}", s.getLeaderboard)
	r.Get("/static/statements/{file}", s.getStatement)

	r.Group(func(r chi.Router) {
		r.Use(requireUser)
		r.Post("/api/submissions", s.createSubmission)
		r.Get("/api/submissions/contest/{contestId}", s.listHistory)
		r.Get("/api/submission/all/{contestId}", s.listClassSubmissions)
		r.Get("/api/class-detail/{classId}", s.getClass)
		r.Get("/api/classes/{classId}/contests", s.listClassContests)
		r.Get("/ws/submission/{submissionId}", s.liveChannel)
	})
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(address string) error {
	s.logger.Info("mock backend listening", "address", address)
	return http.ListenAndServe(address, s.router)
}

// Close stops the simulated judge
func (s *Server) Close() {
	s.judge.Close()
}

// requestID puts the caller's X-Request-ID, or a new one, into the request logger
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := logger.WithRequestID(logger.WithLogger(r.Context(), s.logger), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.ClaimsFromContext(r.Context()) == nil {
			httpjson.HandleError(logger.FromContext(r.Context()), w, srvcerror.ErrUnauthorized())
			return
		}
		next.ServeHTTP(w, r)
	})
}

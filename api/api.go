package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/irsalhamdi/course-portal/api/middleware"
	"github.com/irsalhamdi/course-portal/api/web"
	"github.com/irsalhamdi/course-portal/core/academy"
	"github.com/irsalhamdi/course-portal/core/auth"
	"github.com/irsalhamdi/course-portal/rate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type APIConfig struct {
	CorsOrigin string
	Log        logrus.FieldLogger
	Service    *academy.Service
	Verifier   auth.Verifier
	// Limiter is optional; without it requests are not throttled.
	Limiter *rate.Limiter
	// Gatherer backs the metrics endpoint when MetricsPath is set.
	Gatherer    prometheus.Gatherer
	MetricsPath string
}

type api struct {
	*mux.Router
	mw  []web.Middleware
	log logrus.FieldLogger
}

func APIMux(cfg APIConfig) http.Handler {
	a := &api{
		Router: mux.NewRouter(),
		log:    cfg.Log,
	}

	a.mw = append(a.mw, middleware.RequestID())
	a.mw = append(a.mw, middleware.Logger(cfg.Log))
	a.mw = append(a.mw, middleware.Errors(cfg.Log))
	a.mw = append(a.mw, middleware.Panics())

	if cfg.CorsOrigin != "" {
		a.mw = append(a.mw, middleware.Cors(cfg.CorsOrigin))

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}

		a.Handle(http.MethodOptions, "/{path:.*}", h)
	}

	a.mw = append(a.mw, auth.Authenticate(cfg.Verifier))
	if cfg.Limiter != nil {
		a.mw = append(a.mw, middleware.RateLimit(cfg.Limiter))
	}

	if cfg.MetricsPath != "" && cfg.Gatherer != nil {
		a.Router.Handle(cfg.MetricsPath, promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	svc := cfg.Service

	a.Handle(http.MethodPost, "/portals", academy.HandleCreatePortal(svc))
	a.Handle(http.MethodGet, "/portals/{portal_id}", academy.HandleShowPortal(svc))
	a.Handle(http.MethodGet, "/portals/{portal_id}/administrators", academy.HandleListAdministrators(svc))
	a.Handle(http.MethodPost, "/portals/{portal_id}/administrators", academy.HandleAddAdministrator(svc))
	a.Handle(http.MethodDelete, "/portals/{portal_id}/administrators/{identity}", academy.HandleRemoveAdministrator(svc))
	a.Handle(http.MethodPost, "/portals/{portal_id}/funds", academy.HandleFundPortal(svc))
	a.Handle(http.MethodPost, "/portals/{portal_id}/withdrawals", academy.HandleWithdraw(svc))
	a.Handle(http.MethodGet, "/portals/{portal_id}/courses", academy.HandleListCourses(svc))
	a.Handle(http.MethodPost, "/portals/{portal_id}/courses", academy.HandleCreateCourse(svc))

	a.Handle(http.MethodGet, "/courses/{course_id}", academy.HandleShowCourse(svc))
	a.Handle(http.MethodPut, "/courses/{course_id}", academy.HandleUpdateCourse(svc))
	a.Handle(http.MethodDelete, "/courses/{course_id}", academy.HandleDeleteCourse(svc))

	a.Handle(http.MethodPost, "/students", academy.HandleCreateStudent(svc))
	a.Handle(http.MethodGet, "/students/{student_id}", academy.HandleShowStudent(svc))
	a.Handle(http.MethodPost, "/students/{student_id}/deposits", academy.HandleDeposit(svc))
	a.Handle(http.MethodGet, "/students/{student_id}/enrolled", academy.HandleListEnrolled(svc))
	a.Handle(http.MethodGet, "/students/{student_id}/completed", academy.HandleListCompleted(svc))
	a.Handle(http.MethodPost, "/students/{student_id}/enrollments", academy.HandleEnroll(svc))
	a.Handle(http.MethodGet, "/students/{student_id}/enrollments/{course_id}", academy.HandleShowEnrollment(svc))
	a.Handle(http.MethodDelete, "/students/{student_id}/enrollments/{course_id}", academy.HandleRefund(svc))
	a.Handle(http.MethodPost, "/students/{student_id}/enrollments/{course_id}/approval", academy.HandleApproveCompletion(svc))
	a.Handle(http.MethodPost, "/students/{student_id}/certificates", academy.HandleIssueCertificate(svc))

	a.Handle(http.MethodGet, "/certificates/{certificate_id}", academy.HandleShowCertificate(svc))

	a.Handle(http.MethodPost, "/educators/withdrawals", academy.HandleWithdrawEarnings(svc))

	a.Handle(http.MethodGet, "/accounts/{kind}/{id}", academy.HandleShowBalance(svc))
	a.Handle(http.MethodGet, "/accounts/{kind}/{id}/entries", academy.HandleListEntries(svc))

	return a.Router
}

func (a *api) Handle(method string, path string, handler web.Handler, mw ...web.Middleware) {
	handler = web.WrapMiddleware(mw, handler)
	handler = web.WrapMiddleware(a.mw, handler)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if err := handler(ctx, w, r); err != nil {
			a.log.WithFields(logrus.Fields{
				"req_id":  middleware.ContextRequestID(ctx),
				"message": err,
			}).Error("ERROR")
		}
	})

	a.Router.Handle(path, h).Methods(method)
}

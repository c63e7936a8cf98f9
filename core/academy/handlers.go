package academy

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/irsalhamdi/course-portal/api/web"
	"github.com/irsalhamdi/course-portal/api/weberr"
	"github.com/irsalhamdi/course-portal/core/capability"
	"github.com/irsalhamdi/course-portal/core/course"
	"github.com/irsalhamdi/course-portal/core/ledger"
	"github.com/irsalhamdi/course-portal/validate"
)

// CapabilityHeader carries the encoded capability on portal-scoped requests.
const CapabilityHeader = "X-Capability"

type PortalCreated struct {
	PortalID   string `json:"portalId"`
	Owner      string `json:"owner"`
	Capability string `json:"capability"`
}

type AdministratorNew struct {
	Identity string `json:"identity" validate:"required"`
}

type CapabilityIssued struct {
	Capability string `json:"capability"`
}

type AmountNew struct {
	Amount int64 `json:"amount" validate:"gt=0"`
}

type EnrollmentNew struct {
	CourseID string `json:"courseId" validate:"required"`
}

type CertificateNew struct {
	CourseID  string `json:"courseId" validate:"required"`
	ReceiptID string `json:"receiptId"`
}

type BalanceView struct {
	Account ledger.AccountID `json:"account"`
	Balance int64            `json:"balance"`
}

// readCapability parses the capability header and, when portalID is set,
// requires the capability to be bound to that portal.
func readCapability(r *http.Request, portalID string) (capability.Capability, error) {
	c, err := capability.Parse(r.Header.Get(CapabilityHeader))
	if err != nil {
		return capability.Capability{}, weberr.NotAuthorized(fmt.Errorf("reading capability: %w", err))
	}
	if portalID != "" && c.PortalID != portalID {
		return capability.Capability{}, weberr.NotAuthorized(fmt.Errorf("capability is bound to portal[%s], not portal[%s]", c.PortalID, portalID))
	}
	return c, nil
}

// decode reads and validates a request body.
func decode(w http.ResponseWriter, r *http.Request, val interface{}) error {
	if err := web.Decode(w, r, val); err != nil {
		return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
	}
	if err := validate.Check(val); err != nil {
		return weberr.NewError(err, err.Error(), http.StatusBadRequest)
	}
	return nil
}

// pathID reads an identifier from the route. Identifiers that can never
// exist are reported as missing.
func pathID(r *http.Request, key string) (string, error) {
	id := web.Param(r, key)
	if err := validate.CheckID(id); err != nil {
		return "", weberr.NotFound(fmt.Errorf("%s %q: %w", key, id, err))
	}
	return id, nil
}

func HandleCreatePortal(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		p, cp, err := svc.CreatePortal(ctx)
		if err != nil {
			return weberr.FromFailure(err)
		}

		resp := PortalCreated{PortalID: p.ID, Owner: p.Owner, Capability: cp.String()}
		return web.Respond(ctx, w, resp, http.StatusCreated)
	}
}

func HandleShowPortal(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id, err := pathID(r, "portal_id")
		if err != nil {
			return err
		}

		p, err := svc.Portal(ctx, id)
		if err != nil {
			return weberr.FromFailure(err)
		}
		return web.Respond(ctx, w, p, http.StatusOK)
	}
}

func HandleListAdministrators(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id, err := pathID(r, "portal_id")
		if err != nil {
			return err
		}

		as, err := svc.Administrators(ctx, id)
		if err != nil {
			return weberr.FromFailure(err)
		}
		return web.Respond(ctx, w, as, http.StatusOK)
	}
}

func HandleAddAdministrator(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		c, err := readCapability(r, web.Param(r, "portal_id"))
		if err != nil {
			return err
		}

		var an AdministratorNew
		if err := decode(w, r, &an); err != nil {
			return err
		}

		cp, err := svc.AddAdministrator(ctx, c, an.Identity)
		if err != nil {
			return weberr.FromFailure(err)
		}
		return web.Respond(ctx, w, CapabilityIssued{Capability: cp.String()}, http.StatusCreated)
	}
}

func HandleRemoveAdministrator(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		c, err := readCapability(r, web.Param(r, "portal_id"))
		if err != nil {
			return err
		}

		if err := svc.RemoveAdministrator(ctx, c, web.Param(r, "identity")); err != nil {
			return weberr.FromFailure(err)
		}
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleFundPortal(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id, err := pathID(r, "portal_id")
		if err != nil {
			return err
		}

		var an AmountNew
		if err := decode(w, r, &an); err != nil {
			return err
		}

		e, err := svc.FundPortal(ctx, id, an.Amount)
		if err != nil {
			return weberr.FromFailure(err)
		}
		return web.Respond(ctx, w, e, http.StatusCreated)
	}
}

func HandleWithdraw(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		c, err := readCapability(r, web.Param(r, "portal_id"))
		if err != nil {
			return err
		}

		var an AmountNew
		if err := decode(w, r, &an); err != nil {
			return err
		}

		e, err := svc.Withdraw(ctx, c, an.Amount)
		if err != nil {
			return weberr.FromFailure(err)
		}
		return web.Respond(ctx, w, e, http.StatusCreated)
	}
}

func HandleRefund(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		c, err := readCapability(r, "")
		if err != nil {
			return err
		}

		e, err := svc.Refund(ctx, c, web.Param(r, "student_id"), web.Param(r, "course_id"))
		if err != nil {
			return weberr.FromFailure(err)
		}
		return web.Respond(ctx, w, e, http.StatusOK)
	}
}

func HandleApproveCompletion(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		c, err := readCapability(r, "")
		if err != nil {
			return err
		}

		if err := svc.ApproveCompletion(ctx, c, web.Param(r, "student_id"), web.Param(r, "course_id")); err != nil {
			return weberr.FromFailure(err)
		}
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleListCourses(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id, err := pathID(r, "portal_id")
		if err != nil {
			return err
		}

		cs, err := svc.Courses(ctx, id)
		if err != nil {
			return weberr.FromFailure(err)
		}
		return web.Respond(ctx, w, cs, http.StatusOK)
	}
}

func HandleCreateCourse(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		c, err := readCapability(r, web.Param(r, "portal_id"))
		if err != nil {
			return err
		}

		var cn course.CourseNew
		if err := decode(w, r, &cn); err != nil {
			return err
		}

		crs, err := svc.AddCourse(ctx, c, cn)
		if err != nil {
			return weberr.FromFailure(err)
		}
		return web.Respond(ctx, w, crs, http.StatusCreated)
	}
}

func HandleShowCourse(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id, err := pathID(r, "course_id")
		if err != nil {
			return err
		}

		crs, err := svc.Course(ctx, id)
		if err != nil {
			return weberr.FromFailure(err)
		}
		return web.Respond(ctx, w, crs, http.StatusOK)
	}
}

func HandleUpdateCourse(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		c, err := readCapability(r, "")
		if err != nil {
			return err
		}

		var cu course.CourseUp
		if err := decode(w, r, &cu); err != nil {
			return err
		}

		crs, err := svc.UpdateCourse(ctx, c, web.Param(r, "course_id"), cu)
		if err != nil {
			return weberr.FromFailure(err)
		}
		return web.Respond(ctx, w, crs, http.StatusOK)
	}
}

func HandleDeleteCourse(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		c, err := readCapability(r, "")
		if err != nil {
			return err
		}

		if err := svc.RemoveCourse(ctx, c, web.Param(r, "course_id")); err != nil {
			return weberr.FromFailure(err)
		}
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleCreateStudent(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		st, err := svc.CreateStudent(ctx)
		if err != nil {
			return weberr.FromFailure(err)
		}
		return web.Respond(ctx, w, st, http.StatusCreated)
	}
}

func HandleShowStudent(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id, err := pathID(r, "student_id")
		if err != nil {
			return err
		}

		v, err := svc.Student(ctx, id)
		if err != nil {
			return weberr.FromFailure(err)
		}
		return web.Respond(ctx, w, v, http.StatusOK)
	}
}

func HandleDeposit(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id, err := pathID(r, "student_id")
		if err != nil {
			return err
		}

		var an AmountNew
		if err := decode(w, r, &an); err != nil {
			return err
		}

		e, err := svc.Deposit(ctx, id, an.Amount)
		if err != nil {
			return weberr.FromFailure(err)
		}
		return web.Respond(ctx, w, e, http.StatusCreated)
	}
}

func HandleListEnrolled(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id, err := pathID(r, "student_id")
		if err != nil {
			return err
		}

		ids, err := svc.Enrolled(ctx, id)
		if err != nil {
			return weberr.FromFailure(err)
		}
		return web.Respond(ctx, w, ids, http.StatusOK)
	}
}

func HandleListCompleted(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id, err := pathID(r, "student_id")
		if err != nil {
			return err
		}

		ids, err := svc.Completed(ctx, id)
		if err != nil {
			return weberr.FromFailure(err)
		}
		return web.Respond(ctx, w, ids, http.StatusOK)
	}
}

func HandleEnroll(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var en EnrollmentNew
		if err := decode(w, r, &en); err != nil {
			return err
		}

		rcpt, err := svc.Enroll(ctx, web.Param(r, "student_id"), en.CourseID)
		if err != nil {
			return weberr.FromFailure(err)
		}
		return web.Respond(ctx, w, rcpt, http.StatusCreated)
	}
}

func HandleShowEnrollment(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		e, err := svc.Enrollment(ctx, web.Param(r, "student_id"), web.Param(r, "course_id"))
		if err != nil {
			return weberr.FromFailure(err)
		}
		return web.Respond(ctx, w, e, http.StatusOK)
	}
}

func HandleIssueCertificate(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var cn CertificateNew
		if err := decode(w, r, &cn); err != nil {
			return err
		}

		cert, err := svc.GetCertificate(ctx, web.Param(r, "student_id"), cn.CourseID, cn.ReceiptID)
		if err != nil {
			return weberr.FromFailure(err)
		}
		return web.Respond(ctx, w, cert, http.StatusCreated)
	}
}

func HandleShowCertificate(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id, err := pathID(r, "certificate_id")
		if err != nil {
			return err
		}

		cert, err := svc.Certificate(ctx, id)
		if err != nil {
			return weberr.FromFailure(err)
		}
		return web.Respond(ctx, w, cert, http.StatusOK)
	}
}

func HandleWithdrawEarnings(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var an AmountNew
		if err := decode(w, r, &an); err != nil {
			return err
		}

		e, err := svc.WithdrawEarnings(ctx, an.Amount)
		if err != nil {
			return weberr.FromFailure(err)
		}
		return web.Respond(ctx, w, e, http.StatusCreated)
	}
}

// accountFromPath maps the {kind}/{id} route variables to a ledger account.
func accountFromPath(r *http.Request) (ledger.AccountID, error) {
	id := web.Param(r, "id")
	switch kind := web.Param(r, "kind"); kind {
	case "portals":
		return ledger.PortalAccount(id), nil
	case "students":
		return ledger.StudentAccount(id), nil
	case "educators":
		return ledger.EducatorAccount(id), nil
	default:
		return "", weberr.NotFound(errors.New("unknown account kind " + kind))
	}
}

func HandleShowBalance(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		acc, err := accountFromPath(r)
		if err != nil {
			return err
		}

		bal, err := svc.Balance(ctx, acc)
		if err != nil {
			return weberr.FromFailure(err)
		}
		return web.Respond(ctx, w, BalanceView{Account: acc, Balance: bal}, http.StatusOK)
	}
}

func HandleListEntries(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		acc, err := accountFromPath(r)
		if err != nil {
			return err
		}

		es, err := svc.Entries(ctx, acc)
		if err != nil {
			return weberr.FromFailure(err)
		}
		if es == nil {
			es = []ledger.Entry{}
		}
		return web.Respond(ctx, w, es, http.StatusOK)
	}
}

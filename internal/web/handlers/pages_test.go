package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shindakun/diuportal/internal/models"
	"github.com/shindakun/diuportal/internal/page"
	"github.com/shindakun/diuportal/internal/page/memdom"
	"github.com/shindakun/diuportal/internal/page/pagetest"
	"github.com/shindakun/diuportal/internal/storage"
)

// The tests below run the page controllers against the rendered templates
// and post what they submit back to the server

type mountedPage struct {
	doc *memdom.Document
	nav *pagetest.Navigator
	*page.Mounted
}

func mountPage(t *testing.T, rec *httptest.ResponseRecorder) *mountedPage {
	t.Helper()
	doc, err := memdom.Parse(rec.Body)
	if err != nil {
		t.Fatalf("parse page: %v", err)
	}
	nav := &pagetest.Navigator{}
	return &mountedPage{
		doc:     doc,
		nav:     nav,
		Mounted: page.Mount(doc, page.Deps{Navigator: nav, Scheduler: &pagetest.Clock{}}),
	}
}

func (p *mountedPage) el(t *testing.T, selector string) page.Element {
	t.Helper()
	el := p.doc.Query(selector)
	if el == nil {
		t.Fatalf("%s not found", selector)
	}
	return el
}

// message returns the text of the banner the message display shows
func (p *mountedPage) message(t *testing.T) string {
	t.Helper()
	msgs := p.doc.QueryAll(".dynamic-message")
	if len(msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(msgs))
	}
	return msgs[0].Query(".mt-2").Text()
}

func (p *mountedPage) submission(t *testing.T, formID string) memdom.Submission {
	t.Helper()
	subs := p.doc.Submissions()
	if len(subs) != 1 {
		t.Fatalf("expected one submission, got %d", len(subs))
	}
	if subs[0].FormID != formID {
		t.Fatalf("submitted #%s, want #%s", subs[0].FormID, formID)
	}
	return subs[0]
}

func TestLoginPageScript(t *testing.T) {
	env := newTestEnv(t, withCSRF(), withGoogle())
	env.createUser(t, "Ayesha Khan", "ayesha@diu.edu.bd", models.RoleInstructor)
	c := env.client(t)

	p := mountPage(t, c.get("/login"))
	if p.Login == nil || p.Registration != nil {
		t.Fatalf("mounted %+v, want the login controller only", p.Mounted)
	}
	if p.Login.Role() != models.RoleStudent {
		t.Errorf("initial role = %q", p.Login.Role())
	}

	t.Run("validation blocks the submission", func(t *testing.T) {
		p := mountPage(t, c.get("/login"))
		p.doc.Type(p.el(t, "#emailInput"), "ayesha@gmail.com")
		p.doc.Type(p.el(t, "#passwordInput"), testPassword)
		p.doc.SubmitForm(p.el(t, "#loginForm"))

		if n := len(p.doc.Submissions()); n != 0 {
			t.Fatalf("%d submissions", n)
		}
		if got := p.message(t); got != "Please use your @diu.edu.bd email address" {
			t.Errorf("message = %q", got)
		}
	})

	t.Run("google role button", func(t *testing.T) {
		p := mountPage(t, c.get("/login"))
		p.el(t, `[data-google-role="instructor"]`).Click()
		if got := p.nav.Last(); got != "/auth/google/instructor" {
			t.Fatalf("navigated to %q", got)
		}
		if rec := c.get(p.nav.Last()); rec.Code != http.StatusFound {
			t.Errorf("GET %s: status %d", p.nav.Last(), rec.Code)
		}
	})

	t.Run("wrong tab is rejected and the tab kept", func(t *testing.T) {
		p := mountPage(t, c.get("/login"))
		p.el(t, `.role-tab[data-role="admin"]`).Click()
		p.doc.Type(p.el(t, "#emailInput"), "ayesha@diu.edu.bd")
		p.doc.Type(p.el(t, "#passwordInput"), testPassword)
		p.doc.SubmitForm(p.el(t, "#loginForm"))

		rec := c.post("/login", p.submission(t, page.LoginFormID).Values)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}

		again := mountPage(t, rec)
		if again.Login.Role() != models.RoleAdmin {
			t.Errorf("re-rendered role = %q, want admin", again.Login.Role())
		}
		if got := again.message(t); got != roleMismatchMessage(models.RoleInstructor) {
			t.Errorf("message = %q", got)
		}
		if h := again.el(t, ".dynamic-message h3").Text(); h != page.LoginErrorHeading {
			t.Errorf("heading = %q", h)
		}
	})

	t.Run("signs in", func(t *testing.T) {
		p := mountPage(t, c.get("/login"))
		p.el(t, `.role-tab[data-role="instructor"]`).Click()
		p.doc.Type(p.el(t, "#emailInput"), "ayesha@diu.edu.bd")
		p.doc.Type(p.el(t, "#passwordInput"), testPassword)
		p.doc.SubmitForm(p.el(t, "#loginForm"))

		values := p.submission(t, page.LoginFormID).Values
		if got := values["role"]; len(got) != 1 || got[0] != "instructor" {
			t.Errorf("role values = %q", got)
		}
		if values.Get("csrf_token") == "" {
			t.Error("csrf token missing from the form")
		}

		assertRedirect(t, c.post("/login", values), http.StatusSeeOther, "/dashboard")

		dash := mountPage(t, c.get("/dashboard"))
		if got := dash.message(t); got != "Welcome back, Ayesha!" {
			t.Errorf("dashboard message = %q", got)
		}
		if kind, _ := dash.el(t, ".dynamic-message").Attr("data-kind"); kind != string(page.MessageSuccess) {
			t.Errorf("message kind = %q", kind)
		}
	})

	t.Run("posts without the token are refused", func(t *testing.T) {
		p := mountPage(t, c.get("/login"))
		p.doc.Type(p.el(t, "#emailInput"), "ayesha@diu.edu.bd")
		p.doc.Type(p.el(t, "#passwordInput"), testPassword)
		p.doc.SubmitForm(p.el(t, "#loginForm"))

		values := p.submission(t, page.LoginFormID).Values
		values.Del("csrf_token")
		if rec := c.post("/login", values); rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
	})
}

func TestRegisterPageScript(t *testing.T) {
	env := newTestEnv(t, withCSRF())
	c := env.client(t)

	t.Run("role is required", func(t *testing.T) {
		p := mountPage(t, c.get("/register"))
		if p.Registration == nil || p.Login != nil {
			t.Fatalf("mounted %+v, want the registration controller only", p.Mounted)
		}
		p.doc.SubmitForm(p.el(t, "#registrationForm"))

		if n := len(p.doc.Submissions()); n != 0 {
			t.Fatalf("%d submissions", n)
		}
		if p.el(t, "#roleError").HasClass("hidden") {
			t.Error("role error still hidden")
		}
	})

	t.Run("server errors keep the role", func(t *testing.T) {
		p := mountPage(t, c.get("/register"))
		p.el(t, `.role-card[data-role="instructor"]`).Click()
		p.doc.Type(p.el(t, "#userId"), "EMP001")
		p.doc.SubmitForm(p.el(t, "#registrationForm"))

		rec := c.post("/register", p.submission(t, page.RegistrationFormID).Values)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want 422", rec.Code)
		}

		again := mountPage(t, rec)
		if again.Registration.Role() != models.RoleInstructor {
			t.Errorf("role = %q, want instructor", again.Registration.Role())
		}
		if again.el(t, "#idField").HasClass("hidden") {
			t.Error("identifier field hidden after re-render")
		}
		if got := again.el(t, "#idLabel").Text(); got != "Employee ID" {
			t.Errorf("label = %q", got)
		}
		if got := again.el(t, "#userId").Value(); got != "EMP001" {
			t.Errorf("identifier = %q", got)
		}
		if got := again.message(t); got != MsgFixFields {
			t.Errorf("message = %q", got)
		}
	})

	t.Run("creates the account", func(t *testing.T) {
		p := mountPage(t, c.get("/register"))
		p.el(t, "#name").SetValue("Nadia Islam")
		p.el(t, "#email").SetValue("nadia@diu.edu.bd")
		p.el(t, `.role-card[data-role="student"]`).Click()
		p.doc.Type(p.el(t, "#userId"), "221-15-4716")
		p.el(t, "#password").SetValue(testPassword)
		p.el(t, "#password_confirmation").SetValue(testPassword)
		p.doc.SubmitForm(p.el(t, "#registrationForm"))

		if got := p.el(t, "#submitText").Text(); got != "Creating Account..." {
			t.Errorf("button text = %q", got)
		}

		values := p.submission(t, page.RegistrationFormID).Values
		if values.Get("selected_role") != "student" || values.Get("student_id") != "221-15-4716" || values.Get("employee_id") != "" {
			t.Errorf("submitted %v", values)
		}

		assertRedirect(t, c.post("/register", values), http.StatusSeeOther, "/dashboard")

		user, err := storage.GetUserByEmail(env.db, "nadia@diu.edu.bd")
		if err != nil {
			t.Fatalf("GetUserByEmail() failed: %v", err)
		}
		if user.StudentID != "221-15-4716" {
			t.Errorf("student id = %q", user.StudentID)
		}

		dash := mountPage(t, c.get("/dashboard"))
		if got := dash.message(t); got != "Account created successfully!" {
			t.Errorf("dashboard message = %q", got)
		}
	})
}

func TestForgotPasswordLink(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	p := mountPage(t, c.get("/login"))
	href, _ := p.el(t, "#forgotPasswordLink").Attr("href")
	assertRedirect(t, c.get(href), http.StatusSeeOther, "/login")

	again := mountPage(t, c.get("/login"))
	if got := again.message(t); got != page.ForgotPasswordNotice {
		t.Errorf("message = %q", got)
	}
}

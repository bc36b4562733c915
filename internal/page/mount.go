package page

import "strings"

// Page error headings
const (
	LoginErrorHeading        = "Sign In Failed"
	RegistrationErrorHeading = DefaultErrorHeading
)

const serverMessageID = "serverMessage"

// Deps are the browser services handed to the controllers
type Deps struct {
	Navigator Navigator
	Scheduler Scheduler
}

// Mounted is what Mount bound on a page. Controllers absent from the page
// are nil
type Mounted struct {
	Login        *LoginController
	Registration *RegistrationController
	Messages     *MessageDisplay
}

// Mount binds the login controller when #loginForm exists and the
// registration controller when #registrationForm exists, then shows the
// message the server relayed in #serverMessage
func Mount(doc Document, deps Deps) *Mounted {
	if deps.Scheduler == nil {
		deps.Scheduler = SystemScheduler{}
	}

	heading := RegistrationErrorHeading
	if doc.ByID(LoginFormID) != nil {
		heading = LoginErrorHeading
	}
	m := &Mounted{Messages: NewMessageDisplay(doc, deps.Scheduler, heading)}

	if lc, err := NewLoginController(doc, deps.Navigator, m.Messages); err == nil {
		lc.Bind()
		m.Login = lc
	}

	if rc, err := NewRegistrationController(doc, m.Messages); err == nil {
		rc.Bind()
		rc.Init()
		m.Registration = rc
	}

	if el := doc.ByID(serverMessageID); el != nil {
		if text := strings.TrimSpace(el.Text()); text != "" {
			kind, _ := el.Attr("data-kind")
			m.Messages.Show(text, ParseMessageKind(kind))
		}
	}
	return m
}

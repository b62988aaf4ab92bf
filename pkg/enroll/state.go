package enroll

import "errors"

type Mode string

const (
	ModeLogin  Mode = "login"
	ModeSignup Mode = "signup"
)

// ParseMode accepts "login" or "signup".
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeLogin, ModeSignup:
		return Mode(s), nil
	}
	return "", ErrInvalidMode
}

type Step string

const (
	StepPhone   Step = "phone"
	StepCode    Step = "code"
	StepProfile Step = "profile"
)

// State is the transient enrollment state rendered by the dialog. It is
// never persisted.
type State struct {
	Open      bool   `json:"open"`
	Mode      Mode   `json:"mode,omitempty"`
	Step      Step   `json:"step,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Code      string `json:"code,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Error     string `json:"error,omitempty"`
	Success   string `json:"success,omitempty"`
	ResendIn  int    `json:"resend_in"`
	CanResend bool   `json:"can_resend"`
	Busy      bool   `json:"busy"`

	// Completed is set between a successful verification and the delayed close.
	Completed bool `json:"completed"`
}

// Result is handed to the OnClose callback after a successful enrollment.
type Result struct {
	Mode  Mode
	Phone string
}

// Messages shown on the dialog.
const (
	MsgInvalidPhone    = "Please enter a valid 10-digit mobile number"
	MsgInvalidCode     = "Please enter the 6-digit OTP"
	MsgNameTooShort    = "First and last name must be at least 2 characters"
	MsgSendFailed      = "Failed to send OTP"
	MsgVerifyFailed    = "Invalid OTP, please try again"
	MsgRegisterFailed  = "Registration failed, please try again"
	MsgCodeSent        = "OTP sent successfully"
	MsgCodeResent      = "OTP resent successfully"
	MsgLoginSuccess    = "Login successful!"
	MsgRegisterSuccess = "Registration successful!"
)

// Local validation errors. None of these reach the session store.
var (
	ErrInvalidMode  = errors.New("enroll: mode must be login or signup")
	ErrInvalidPhone = errors.New("enroll: invalid phone number")
	ErrInvalidCode  = errors.New("enroll: code must be 6 characters")
	ErrNameTooShort = errors.New("enroll: first and last name must be at least 2 characters")
)

// Remote failures, collapsed to one error per step.
var (
	ErrSendFailed     = errors.New("enroll: failed to send code")
	ErrVerifyFailed   = errors.New("enroll: code verification failed")
	ErrRegisterFailed = errors.New("enroll: registration failed")
)

// State machine errors.
var (
	ErrClosed           = errors.New("enroll: wizard is not open")
	ErrWrongStep        = errors.New("enroll: action not allowed at this step")
	ErrModeLocked       = errors.New("enroll: mode can only change at the phone step")
	ErrBusy             = errors.New("enroll: a request is already in flight")
	ErrResendNotAllowed = errors.New("enroll: resend is not allowed yet")
	ErrCompleted        = errors.New("enroll: enrollment already completed")
	ErrAborted          = errors.New("enroll: wizard was closed while the request was in flight")
)

// IsValidation reports whether err is a local input validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidPhone) ||
		errors.Is(err, ErrInvalidCode) ||
		errors.Is(err, ErrNameTooShort) ||
		errors.Is(err, ErrInvalidMode)
}

// IsRemote reports whether err stands for a failed session store call.
func IsRemote(err error) bool {
	return errors.Is(err, ErrSendFailed) ||
		errors.Is(err, ErrVerifyFailed) ||
		errors.Is(err, ErrRegisterFailed)
}

package relay

// Result is the JSON body of every relay response.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Messages shown to the person filling in the form.
const (
	MsgPostOnly      = "Dozwolone są tylko żądania POST."
	MsgHoneypot      = "Wiadomość wysłana pomyślnie."
	MsgTooFast       = "Formularz wypełniono zbyt szybko. Jesteś robotem?"
	MsgBadToken      = "Błąd weryfikacji anty-spamowej. Włącz JavaScript."
	MsgBadEmail      = "Podano niepoprawny adres email."
	MsgUnknownForm   = "Nieznany typ formularza."
	MsgMissingFields = "Wypełnij wszystkie wymagane pola."
	MsgSent          = "Wiadomość została wysłana."
	MsgSendFailed    = "Wystąpił błąd serwera podczas wysyłania wiadomości."
)

// Outcomes that are not stage names. Rejections are reported under the name
// of the stage that produced them.
const (
	OutcomeSent       = "sent"
	OutcomeSendFailed = "send_failed"
	OutcomeHoneypot   = "honeypot"
)

func fail(msg string) *Result { return &Result{Success: false, Message: msg} }

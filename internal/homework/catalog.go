package homework

type Status string

const (
	StatusRejected  Status = "rejected"
	StatusApproved  Status = "approved"
	StatusReviewing Status = "reviewing"
)

var verdicts = map[Status]string{
	StatusRejected:  "К сожалению в работе нашлись ошибки.",
	StatusApproved:  "Ревьюеру всё понравилось, можно приступать к следующему уроку.",
	StatusReviewing: "Работа взята в ревью.",
}

// Verdict returns the text for a known status.
func Verdict(s Status) (string, bool) {
	v, ok := verdicts[s]
	return v, ok
}

// KnownStatuses lists the catalog keys in a stable order.
func KnownStatuses() []Status {
	return []Status{StatusRejected, StatusApproved, StatusReviewing}
}

package homework

import (
	"fmt"

	logx "hwbot/pkg/logx"
)

// UndefinedStatusError reports a status missing from the catalog.
type UndefinedStatusError struct {
	Status Status
}

func (e *UndefinedStatusError) Error() string {
	return fmt.Sprintf("В ответе пришел неизвестный статус %s", e.Status)
}

// FormatStatus renders the notification for a reviewed homework.
func FormatStatus(rec Record, log logx.Logger) (string, error) {
	verdict, ok := Verdict(rec.Status)
	if !ok {
		return "", &UndefinedStatusError{Status: rec.Status}
	}
	name := rec.Name()
	log.Info("homework status parsed", logx.String("homework", name), logx.String("verdict", verdict))
	return fmt.Sprintf("У вас проверили работу \"%s\"!\n\n%s", name, verdict), nil
}

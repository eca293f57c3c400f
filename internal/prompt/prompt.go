package prompt

import (
	"fmt"
	"time"
)

// Chat is the template sent to the model on every turn. It takes the current
// date, the rendered conversation memory and the user input.
var Chat = `Today's date: %s

%sUser: %s
Assistant:`

// Compose builds the prompt for a single turn.
func Compose(now time.Time, history, input string) string {
	return fmt.Sprintf(Chat, now.Format("2006-01-02"), history, input)
}

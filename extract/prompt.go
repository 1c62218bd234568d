package extract

import (
	"fmt"
	"time"
)

// systemPrompt embeds today's date and the strict output contract. The model
// must answer with the JSON object alone; firstJSONObject tolerates strays.
func systemPrompt(today time.Time) string {
	return fmt.Sprintf(`You are an assistant that turns free text into a calendar event.
Today is %s (timezone UTC-03:00).

Respond with ONLY a JSON object, no prose, matching exactly this shape:
{
  "title": "short event title",
  "description": "details, or null",
  "location": "place, or null",
  "status": "scheduled",
  "startDate": "2006-01-02T15:04:05-03:00",
  "endDate": "2006-01-02T15:04:05-03:00"
}

Rules:
- startDate and endDate are ISO 8601 timestamps with the -03:00 offset.
- Resolve relative dates ("tomorrow", "next monday") against today's date, always into the future.
- If no duration is given, make the event one hour long.
- Do not add fields. Do not wrap the JSON in markdown fences.`,
		today.Format("Monday, 2006-01-02"))
}

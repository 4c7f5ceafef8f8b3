package view

import (
	"fmt"

	"procodus.dev/thermobot/internal/store"
)

// ListContent builds the list screen: one button per sensor, in
// registration order. Tokens are generated fresh on every render.
func ListContent(userID string, sensors []*store.Sensor) Content {
	if len(sensors) == 0 {
		return Content{Text: "No termometers available."}
	}

	keyboard := make([][]Button, 0, len(sensors))
	for _, s := range sensors {
		token := Action{Screen: ScreenDetail, UserID: userID, SensorID: s.ID()}.Encode()
		keyboard = append(keyboard, []Button{{Label: s.Name(), Token: token}})
	}

	return Content{
		Text:     "Select a termometer:",
		Keyboard: keyboard,
	}
}

// DetailContent builds the detail screen for one sensor with back and
// refresh controls.
func DetailContent(userID string, s *store.Sensor) Content {
	text := fmt.Sprintf("%s\nTemperature: %.2f °C\nHumidity: %.2f %%",
		s.Name(), s.Temperature(), s.Humidity())

	backToken := Action{Screen: ScreenList, UserID: userID}.Encode()
	refreshToken := Action{Screen: ScreenDetail, UserID: userID, SensorID: s.ID()}.Encode()

	return Content{
		Text: text,
		Keyboard: [][]Button{
			{
				{Label: "« Back", Token: backToken},
				{Label: "Refresh", Token: refreshToken},
			},
		},
	}
}

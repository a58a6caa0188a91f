// Package pulse picks the message of the day.
package pulse

import (
	"time"

	"github.com/redevirtus/virtus/internal/model"
)

// Messages rotate by day of year.
var Messages = []string{
	"O silêncio também é uma oração. Hoje, dedique um momento para ouvir a voz de Deus em seu coração.",
	"Desligue o barulho do mundo por alguns minutos e deixe Deus falar com você.",
	"Um gesto de caridade vale mais do que mil palavras. Procure hoje alguém que precise de você.",
	"A paciência é uma virtude que se aprende no dia a dia. Pratique-a nas pequenas coisas.",
	"Leia um capítulo das Escrituras hoje e guarde uma frase no coração.",
	"Agradeça a Deus por três coisas simples do seu dia.",
	"A humildade abre as portas da graça. Ouça mais do que fala.",
}

// ForDate returns the pulse for date's calendar day.
func ForDate(date time.Time) model.DailyPulse {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	return model.DailyPulse{
		ID:          "pulse-" + day.Format("2006-01-02"),
		PulseDate:   day,
		MessageText: Messages[(day.YearDay()-1)%len(Messages)],
		IsActive:    true,
	}
}

package dashboard

import "math/rand/v2"

var quotes = []string{
	"The secret of getting ahead is getting started.",
	"Believe you can and you're halfway there.",
	"It does not matter how slowly you go as long as you do not stop.",
	"The best way to predict the future is to create it.",
	"Success is not final, failure is not fatal: it is the courage to continue that counts.",
}

func randomQuote() string {
	return quotes[rand.IntN(len(quotes))]
}

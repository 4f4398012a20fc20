package cli

import "celo-quiz-settlement/internal/domain"

// bundledQuizzes is served when no Postgres is configured and written by `seed`.
func bundledQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"soccer": {ID: "soccer", Questions: soccerQuestions},
	}
}

var soccerQuestions = []domain.Question{
	{
		Text:         "Which club has won the most UEFA Champions League / European Cup titles?",
		Options:      []string{"Real Madrid", "AC Milan", "Bayern Munich", "Liverpool"},
		CorrectIndex: 0,
		Explanation:  "Real Madrid holds the record with 15 UEFA Champions League titles, cementing their dominance in European club football.",
	},
	{
		Text:         "Who is the all-time top scorer in FIFA World Cup history?",
		Options:      []string{"Cristiano Ronaldo", "Lionel Messi", "Ronaldo Nazário", "Miroslav Klose"},
		CorrectIndex: 3,
		Explanation:  "Miroslav Klose scored 16 World Cup goals across his career, holding the all-time record.",
	},
	{
		Text:         "Which organization governs soccer in Europe?",
		Options:      []string{"FIFA", "CONMEBOL", "UEFA", "AFC"},
		CorrectIndex: 2,
		Explanation:  "UEFA (Union of European Football Associations) is the governing body for football in Europe, organizing major tournaments.",
	},
	{
		Text:         "Which manager led Manchester City to their first-ever Premier League title?",
		Options:      []string{"José Mourinho", "Roberto Mancini", "Pep Guardiola", "Claudio Ranieri"},
		CorrectIndex: 1,
		Explanation:  "Roberto Mancini delivered Manchester City's first Premier League title in 2012, marking a turning point for the club.",
	},
	{
		Text:         "What is the name of the annual competition between the top domestic league champions of South America?",
		Options:      []string{"Copa América", "Copa Libertadores", "Copa del Rey", "Sudamericana"},
		CorrectIndex: 1,
		Explanation:  "The Copa Libertadores is South America's premier club competition, founded in 1960.",
	},
	{
		Text:         "Which country has won the most FIFA World Cup titles?",
		Options:      []string{"Germany", "Italy", "Brazil", "Argentina"},
		CorrectIndex: 2,
		Explanation:  "Brazil has won 5 FIFA World Cup titles, more than any other nation.",
	},
	{
		Text:         `Which English competition is known as "The FA Cup"?`,
		Options:      []string{"The Premier League", "The League Cup", "The Community Shield", "The Football Association Challenge Cup"},
		CorrectIndex: 3,
		Explanation:  "The FA Cup, officially the Football Association Challenge Cup, is England's oldest knockout tournament, dating back to 1871.",
	},
	{
		Text:         "Who managed Barcelona during their historic 2010–11 Champions League-winning season?",
		Options:      []string{"Rafael Benítez", "Pep Guardiola", "Luis Enrique", "Tito Vilanova"},
		CorrectIndex: 1,
		Explanation:  "Pep Guardiola orchestrated Barcelona's 2010-11 Champions League win with stunning attacking football.",
	},
	{
		Text:         "Which confederation governs soccer in Africa?",
		Options:      []string{"AFC", "OFC", "CONCACAF", "CAF"},
		CorrectIndex: 3,
		Explanation:  "CAF (Confederation of African Football) is the governing body for African football, organizing the Africa Cup of Nations.",
	},
	{
		Text:         `The "Serie A" is the top-tier football league in which country?`,
		Options:      []string{"Spain", "Portugal", "Italy", "France"},
		CorrectIndex: 2,
		Explanation:  "Serie A is Italy's top football division, home to clubs like AC Milan, Inter Milan and Juventus.",
	},
}

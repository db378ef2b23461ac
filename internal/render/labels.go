package render

import "golang.org/x/text/language"

type labels struct {
	title   string
	name    string
	mapName string
	players string
	game    string
	status  string
	updated string
	ping    string
	errText string
	footer  string
}

var supported = []language.Tag{
	language.English, // first entry is the fallback
	language.Russian,
}

var catalog = map[language.Tag]labels{
	language.English: {
		title:   "Server Status",
		name:    "🖥 Server Name",
		mapName: "🗺 Current Map",
		players: "👥 Players",
		game:    "🎮 Game",
		status:  "📊 Status",
		updated: "⏱ Last Updated",
		ping:    "📡 Ping",
		errText: "❌ Error",
		footer:  "Server",
	},
	language.Russian: {
		title:   "Статус сервера",
		name:    "🖥 Название сервера",
		mapName: "🗺 Текущая карта",
		players: "👥 Игроки",
		game:    "🎮 Игра",
		status:  "📊 Статус",
		updated: "⏱ Обновлено",
		ping:    "📡 Пинг",
		errText: "❌ Ошибка",
		footer:  "Сервер",
	},
}

var matcher = language.NewMatcher(supported)

// match resolves a locale string like "ru-RU" or "en" to a supported tag.
func match(locale string) language.Tag {
	_, idx := language.MatchStrings(matcher, locale)
	return supported[idx]
}

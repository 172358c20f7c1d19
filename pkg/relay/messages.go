// Copyright 2024-2026 Aiku AI

package relay

import (
	"fmt"
	"strings"
)

// DefaultLanguage is used when the configured language has no table.
const DefaultLanguage = "en"

// Messages holds every user-visible text the relay produces in one language.
// Fields containing %s take the channel username (without "@") first.
type Messages struct {
	Welcome string

	PairingInstructions string
	PairingActive       string
	PairingSuccess      string
	PairingExpired      string
	PairingDenied       string
	PairingFailed       string

	AuthRequired   string
	PromptAdd      string
	PromptRemove   string
	InvalidChannel string
	MissingContext string

	Subscribed        string
	AlreadySubscribed string
	Unsubscribed      string
	NotSubscribed     string

	ChannelListHeader string
	NoSubscriptions   string

	ForwardedPost string
}

// Buttons holds the reply keyboard labels of one language.
type Buttons struct {
	Authenticate string
	AddChannel   string
	ListChannels string
	Unsubscribe  string
}

var english = &Messages{
	Welcome: "👋 Hi! I forward new posts from channels you follow.\n\n" +
		"1. Press '🔐 Sign in' to link your account with a QR code\n" +
		"2. Add channels with '➕ Add channel'\n" +
		"3. Receive new posts automatically!",
	PairingInstructions: "🔑 Scan this QR code in Telegram:\n" +
		"1. Open Telegram on your phone\n" +
		"2. Settings → Devices → Link Desktop Device\n" +
		"3. Scan this code\n\n" +
		"⏳ The QR code is valid for 1 minute",
	PairingActive:  "❌ You already have an active QR code",
	PairingSuccess: "✅ Signed in successfully!",
	PairingExpired: "⌛ The QR code has expired",
	PairingDenied:  "❌ Sign-in was not completed. Please try again.",
	PairingFailed:  "❌ Could not reach Telegram to sign in. Please try again later.",

	AuthRequired:   "❌ Please sign in first with '🔐 Sign in'",
	PromptAdd:      "📝 Enter the channel @username to add:",
	PromptRemove:   "📝 Enter the channel @username to unsubscribe from:",
	InvalidChannel: "Enter a channel username (for example, @channel_name)",
	MissingContext: "ℹ️ Use '➕ Add channel' or '❌ Unsubscribe' first, then reply with the @username",

	Subscribed:        "✅ You will now receive posts from @%s!",
	AlreadySubscribed: "ℹ️ You are already subscribed to this channel",
	Unsubscribed:      "❌ You unsubscribed from @%s",
	NotSubscribed:     "ℹ️ You are not subscribed to this channel",

	ChannelListHeader: "📢 Your channels:",
	NoSubscriptions:   "You have no active subscriptions",

	ForwardedPost: "📢 New post from @%s:\n\n%s",
}

var russian = &Messages{
	Welcome: "👋 Привет! Я бот для получения постов из каналов.\n\n" +
		"1. Нажми '🔐 Авторизация' для входа через QR-код\n" +
		"2. Добавь каналы через '➕ Добавить канал'\n" +
		"3. Получай новые посты автоматически!",
	PairingInstructions: "🔑 Отсканируйте этот QR-код в Telegram:\n" +
		"1. Откройте Telegram на телефоне\n" +
		"2. Настройки → Устройства → Подключить устройство\n" +
		"3. Сканируйте этот код\n\n" +
		"⏳ QR-код действителен 1 минуту",
	PairingActive:  "❌ У вас уже есть активный QR-код",
	PairingSuccess: "✅ Авторизация прошла успешно!",
	PairingExpired: "⌛ Время действия QR-кода истекло",
	PairingDenied:  "❌ Вход не выполнен. Попробуйте снова.",
	PairingFailed:  "❌ Не удалось связаться с Telegram. Попробуйте позже.",

	AuthRequired:   "❌ Сначала авторизуйтесь через '🔐 Авторизация'",
	PromptAdd:      "📝 Введите @username канала для добавления:",
	PromptRemove:   "📝 Введите @username канала для отписки:",
	InvalidChannel: "Введите username канала (например, @channel_name)",
	MissingContext: "ℹ️ Сначала нажмите '➕ Добавить канал' или '❌ Отписаться', затем ответьте @username",

	Subscribed:        "✅ Теперь вы будете получать посты из @%s!",
	AlreadySubscribed: "ℹ️ Вы уже подписаны на этот канал",
	Unsubscribed:      "❌ Вы отписались от @%s",
	NotSubscribed:     "ℹ️ Вы не подписаны на этот канал",

	ChannelListHeader: "📢 Ваши каналы:",
	NoSubscriptions:   "У вас нет активных подписок",

	ForwardedPost: "📢 Новый пост из @%s:\n\n%s",
}

var buttons = map[string]Buttons{
	"en": {
		Authenticate: "🔐 Sign in",
		AddChannel:   "➕ Add channel",
		ListChannels: "📋 My channels",
		Unsubscribe:  "❌ Unsubscribe",
	},
	"ru": {
		Authenticate: "🔐 Авторизация",
		AddChannel:   "➕ Добавить канал",
		ListChannels: "📋 Мои каналы",
		Unsubscribe:  "❌ Отписаться",
	},
}

var messageTables = map[string]*Messages{
	"en": english,
	"ru": russian,
}

// MessagesFor returns the table for a language, falling back to English.
func MessagesFor(lang string) *Messages {
	if m, ok := messageTables[strings.ToLower(lang)]; ok {
		return m
	}
	return english
}

// ButtonsFor returns the keyboard labels for a language, falling back to
// English.
func ButtonsFor(lang string) Buttons {
	if b, ok := buttons[strings.ToLower(lang)]; ok {
		return b
	}
	return buttons[DefaultLanguage]
}

// AllButtons returns the labels of every supported language.
func AllButtons() []Buttons {
	return []Buttons{buttons["en"], buttons["ru"]}
}

// AllMessages returns the tables of every supported language.
func AllMessages() []*Messages {
	return []*Messages{english, russian}
}

// FormatPost formats a relayed channel post.
func (m *Messages) FormatPost(channel, text string) string {
	return fmt.Sprintf(m.ForwardedPost, channel, text)
}

// ChannelList formats the reply to a list request.
func (m *Messages) ChannelList(channels []string) string {
	if len(channels) == 0 {
		return m.NoSubscriptions
	}
	var sb strings.Builder
	sb.WriteString(m.ChannelListHeader)
	for _, ch := range channels {
		sb.WriteString("\n@")
		sb.WriteString(ch)
	}
	return sb.String()
}

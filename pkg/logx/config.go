package logx

// DefaultFilePath is used when the file sink is enabled without a path.
const DefaultFilePath = "./bot.log"

type Config struct {
	Level    string
	Console  bool
	File     FileConfig
	Telegram TelegramConfig
}

type FileConfig struct {
	Enabled bool
	Path    string
}

// TelegramConfig controls the operator chat sink. The chat itself is set
// with Service.SetTelegramTarget.
type TelegramConfig struct {
	Enabled    bool
	ThreadID   int
	MinLevel   string
	RatePerSec int
}

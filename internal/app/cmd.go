package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はボードサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandCheck は上流APIから1回だけ読み込み、種別ごとの件数を出力して終了することを示す。
	// 設定した上流URLの疎通確認に使う。
	CommandCheck Command = "check"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "serve":
		return CommandServe
	case "check":
		return CommandCheck
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}

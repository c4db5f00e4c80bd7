// Command campusclimb は募集情報ボードのサーバーを起動する。
//
// 使い方:
//
//	campusclimb [serve|check|healthcheck]
package main

import (
	"log/slog"
	"os"

	"github.com/hitoshi/campusclimb/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		slog.Error("campusclimb exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

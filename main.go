package main

import (
	"embed"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
)

//go:embed all:frontend/dist
var assets embed.FS

// Version is overridden at build time with -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	app := NewApp(Version)

	err := wails.Run(&options.App{
		Title:     "AdbTool",
		Width:     1280,
		Height:    720,
		MinWidth:  1024,
		MinHeight: 600,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		BackgroundColour: &options.RGBA{R: 27, G: 38, B: 54, A: 1},
		OnStartup:        app.startup,
		OnShutdown:       app.Shutdown,
		Bind: []interface{}{
			app,
		},
	})

	if err != nil {
		LogError("main").Err(err).Msg("Application failed to start")
	}
}

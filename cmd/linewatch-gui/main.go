package main

import (
	"flag"
	"fmt"
	"os"

	"fyne.io/fyne/v2/app"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"jordanella.com/linewatch/internal/config"
	"jordanella.com/linewatch/internal/gui"
	"jordanella.com/linewatch/internal/logging"
	"jordanella.com/linewatch/internal/session"
)

func main() {
	configPath := flag.String("config", "Settings.ini", "settings file")
	flag.Parse()

	settings, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	history := logging.NewHistory(1000, zapcore.InfoLevel)
	logger, err := logging.New(settings.Logging, nil, history.Core())
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	sess, err := session.Open(session.Options{Settings: settings, Logger: logger})
	if err != nil {
		logger.Error("Startup failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	defer sess.Close()

	// Create Fyne application
	myApp := app.NewWithID("com.jordanella.linewatch")
	myApp.Settings().SetTheme(&gui.Theme{})

	mainWindow := myApp.NewWindow("linewatch - " + sess.Device.Device())
	mainWindow.Resize(gui.DefaultWindowSize)

	controller := gui.NewController(myApp, mainWindow, sess, sess.Queue, history, logger.Named("gui"))
	mainWindow.SetContent(controller.BuildUI())
	mainWindow.SetMaster()

	controller.Start()
	mainWindow.ShowAndRun()

	// Cleanup on exit
	controller.Shutdown()
}

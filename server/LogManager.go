package server

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"msiec-ctl/msiec/log"
)

// LogManager はファイルロガーのセットアップとSIGHUPによるローテーションを担当する
type LogManager struct {
	rotateSignalCh chan os.Signal
}

func NewLogManager(logFilename string, debug bool) (*LogManager, error) {
	// ロガーのセットアップ
	logger, err := log.NewLogger(logFilename, debug)
	if err != nil {
		return nil, err
	}
	log.SetLogger(logger)

	// ログローテーション用のシグナルハンドリング (SIGHUP)
	rotateSignalCh := make(chan os.Signal, 1)
	signal.Notify(rotateSignalCh, syscall.SIGHUP)
	go func() {
		for range rotateSignalCh {
			fmt.Fprintln(os.Stderr, "SIGHUPを受信しました。ログファイルをローテーションします...")
			logger := log.GetLogger()
			if logger == nil {
				continue
			}
			logger.Log("SIGHUPを受信しました。ログファイルをローテーションします...")
			if err := logger.Rotate(); err != nil {
				_, _ = fmt.Fprintf(os.Stderr, "ログローテーションエラー: %v\n", err)
			}
		}
	}()

	return &LogManager{rotateSignalCh: rotateSignalCh}, nil
}

func (lm *LogManager) Close() error {
	signal.Stop(lm.rotateSignalCh)
	close(lm.rotateSignalCh)
	// ログファイルを閉じる
	log.SetLogger(nil)
	return nil
}

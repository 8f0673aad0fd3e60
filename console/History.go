package console

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

const historyFileName = ".msiec_history"

// getHistoryFilePath は履歴ファイルのパスを取得する
func getHistoryFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// ホームディレクトリが取得できない場合はカレントディレクトリに作成
		slog.Warn("ホームディレクトリが取得できないため、履歴ファイルはカレントディレクトリに作成されます", "err", err)
		return historyFileName
	}
	return fmt.Sprintf("%s/%s", home, historyFileName)
}

// loadHistory は履歴ファイルから履歴を読み込む。
// 重複と空行は取り除き、同じ行は新しい側だけを残す
func loadHistory(filePath string) []string {
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{} // ファイルが存在しない場合は空の履歴
		}
		slog.Warn("履歴ファイルの読み込みに失敗しました", "path", filePath, "err", err)
		return []string{}
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		slog.Warn("履歴ファイルのスキャン中にエラーが発生しました", "path", filePath, "err", err)
	}

	// 新しいものから見ていき、最初に現れた行だけを残す
	cleaned := make([]string, 0, len(lines))
	seen := make(map[string]struct{})
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if _, ok := seen[line]; !ok {
			cleaned = append(cleaned, line)
			seen[line] = struct{}{}
		}
	}
	// 順序を元に戻す
	for i, j := 0, len(cleaned)-1; i < j; i, j = i+1, j-1 {
		cleaned[i], cleaned[j] = cleaned[j], cleaned[i]
	}

	return cleaned
}

// appendHistory は、入力された行を履歴に追加する。
// 空行と直前の行の繰り返しは追加しない
func appendHistory(history []string, line string) []string {
	line = strings.TrimSpace(line)
	if line == "" {
		return history
	}
	if len(history) > 0 && history[len(history)-1] == line {
		return history
	}
	return append(history, line)
}

// saveHistory は履歴をファイルに書き込む
func saveHistory(filePath string, history []string) {
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		slog.Warn("履歴ファイルの書き込みに失敗しました", "path", filePath, "err", err)
		return
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	// 重複除去は loadHistory と appendHistory で済んでいるので、そのまま書き込む
	for _, line := range history {
		// 空行は書き込まない
		if strings.TrimSpace(line) == "" {
			continue
		}
		if _, err := fmt.Fprintln(writer, line); err != nil {
			slog.Warn("履歴の書き込み中にエラーが発生しました", "path", filePath, "err", err)
			return // エラーが発生したら中断
		}
	}

	if err := writer.Flush(); err != nil {
		slog.Warn("履歴ファイルのフラッシュ中にエラーが発生しました", "path", filePath, "err", err)
	}
}

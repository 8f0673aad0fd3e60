package console

import (
	"github.com/c-bata/go-prompt"
	"golang.org/x/exp/slices"

	"msiec-ctl/client"
)

// completeInput は go-prompt から呼び出される補完関数
func completeInput(c client.ECClient, d prompt.Document) []prompt.Suggest {
	return completeWords(c, splitWords(d.TextBeforeCursor()), d.GetWordBeforeCursor())
}

// completeWords は、カーソル位置までの単語列と入力途中の単語から補完候補を返す
func completeWords(c client.ECClient, words []string, prefix string) []prompt.Suggest {
	// 1語目はコマンド名の補完
	if len(words) <= 1 {
		return prompt.FilterHasPrefix(getCommandNameCandidates(), prefix, true)
	}

	// 2語目以降はコマンド定義の補完関数に委ねる
	for _, cmdDef := range CommandTable {
		if cmdDef.Name == words[0] || slices.Contains(cmdDef.Aliases, words[0]) {
			if cmdDef.GetCandidatesFunc == nil {
				break
			}
			return prompt.FilterHasPrefix(cmdDef.GetCandidatesFunc(c, words), prefix, true)
		}
	}
	return []prompt.Suggest{}
}

// getCommandNameCandidates はコマンド名（別名を含む）の候補を返す
func getCommandNameCandidates() []prompt.Suggest {
	suggests := make([]prompt.Suggest, 0, len(CommandTable))
	for _, cmdDef := range CommandTable {
		suggests = append(suggests, prompt.Suggest{
			Text:        cmdDef.Name,
			Description: cmdDef.Summary,
		})
		for _, alias := range cmdDef.Aliases {
			suggests = append(suggests, prompt.Suggest{
				Text:        alias,
				Description: cmdDef.Summary,
			})
		}
	}
	return suggests
}

// getPropertyNameCandidates はプロパティ名の候補を返す
func getPropertyNameCandidates(c client.ECClient) []prompt.Suggest {
	names := c.PropertyNames()
	suggests := make([]prompt.Suggest, 0, len(names))
	for _, name := range names {
		suggests = append(suggests, prompt.Suggest{Text: name})
	}
	return suggests
}

// getGroupCandidates はグループ名の候補を返す
func getGroupCandidates(c client.ECClient) []prompt.Suggest {
	groups := c.PropertyGroups()
	suggests := make([]prompt.Suggest, 0, len(groups))
	for _, group := range groups {
		suggests = append(suggests, prompt.Suggest{Text: group})
	}
	return suggests
}

// getValueCandidates は、指定したプロパティに設定できる値の候補を返す
func getValueCandidates(c client.ECClient, name string) []prompt.Suggest {
	candidates := c.ValueCandidates(name)
	suggests := make([]prompt.Suggest, 0, len(candidates))
	for _, candidate := range candidates {
		suggests = append(suggests, prompt.Suggest{Text: candidate})
	}
	return suggests
}

// splitWords は入力行を単語に分割する補助関数
// go-prompt の Document.GetWordBeforeCursor や Document.TextBeforeCursor と組み合わせて使う
func splitWords(line string) []string {
	// 空の入力の場合は空のスライスを返す
	if line == "" {
		return []string{}
	}

	words := make([]string, 0) // non-nil スライスとして初期化
	var word string
	inQuote := false
	lastWasSpace := true // 最初はスペースとみなす

	for _, r := range line {
		switch r {
		case ' ', '\t':
			if !inQuote {
				if !lastWasSpace && word != "" { // 直前がスペースでなく、単語がある場合のみ追加
					words = append(words, word)
					word = ""
				}
				lastWasSpace = true
			} else { // inQuote
				word += string(r)
				lastWasSpace = false // クォート内ではスペースも単語の一部
			}
		case '"', '\'':
			inQuote = !inQuote
			lastWasSpace = false
		default:
			word += string(r)
			lastWasSpace = false
		}
	}

	// 最後の単語を追加
	if word != "" {
		words = append(words, word)
	}

	// 末尾が空白だった場合、空の単語を1つだけ追加
	if lastWasSpace {
		words = append(words, "")
	}

	return words
}

package console

import (
	"context"
	"reflect"
	"testing"

	"msiec-ctl/client"
	"msiec-ctl/msiec"
	"msiec-ctl/msiec/ecio"
	"msiec-ctl/msiec/handler"
)

// newConsoleClient は、モックトランスポートに接続されたローカルクライアントを作成する
func newConsoleClient(t *testing.T) client.ECClient {
	t.Helper()
	mock := ecio.NewMockTransport()
	ctx, cancel := context.WithCancel(context.Background())
	h, err := handler.NewECHandler(ctx, mock, msiec.DefaultPropertyTable(), handler.Options{})
	if err != nil {
		t.Fatalf("NewECHandler エラー: %v", err)
	}
	t.Cleanup(func() {
		_ = h.Close()
		cancel()
	})
	return client.NewECClientProxy(ctx, h)
}

func TestSplitWords(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"空の入力", "", []string{}},
		{"コマンドのみ", "get", []string{"get"}},
		{"複数の単語", "get webcam", []string{"get", "webcam"}},
		{"末尾の空白", "get webcam ", []string{"get", "webcam", ""}},
		{"先頭の空白", "  get", []string{"get"}},
		{"タブ区切り", "get\twebcam", []string{"get", "webcam"}},
		{"引用符付き", `set name "a b"`, []string{"set", "name", "a b"}},
		{"空白のみ", "   ", []string{""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitWords(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitWords(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestCompleteWords_CommandNames(t *testing.T) {
	c := newConsoleClient(t)

	suggests := completeWords(c, splitWords("li"), "li")
	if len(suggests) != 1 || suggests[0].Text != "list" {
		t.Errorf("li の補完 = %+v, want [list]", suggests)
	}

	// 空の入力は全コマンドを候補にする
	suggests = completeWords(c, splitWords(""), "")
	if len(suggests) < len(CommandTable) {
		t.Errorf("空の入力の補完候補が少なすぎます: %d", len(suggests))
	}
}

func TestCompleteWords_PropertyNames(t *testing.T) {
	c := newConsoleClient(t)

	suggests := completeWords(c, splitWords("get web"), "web")
	texts := make(map[string]bool)
	for _, s := range suggests {
		texts[s.Text] = true
	}
	if !texts["webcam"] || !texts["webcam_block"] {
		t.Errorf("web の補完に webcam/webcam_block がありません: %+v", suggests)
	}
}

func TestCompleteWords_SetValues(t *testing.T) {
	c := newConsoleClient(t)

	// set <プロパティ名> の直後は設定値の候補
	suggests := completeWords(c, splitWords("set webcam "), "")
	if len(suggests) != 2 || suggests[0].Text != "off" || suggests[1].Text != "on" {
		t.Errorf("webcam の値候補 = %+v, want [off on]", suggests)
	}

	// 値の次はまたプロパティ名の候補
	suggests = completeWords(c, splitWords("set webcam off "), "")
	found := false
	for _, s := range suggests {
		if s.Text == "micmute_led" {
			found = true
		}
	}
	if !found {
		t.Errorf("値の後の補完にプロパティ名がありません: %d 件", len(suggests))
	}
}

func TestCompleteWords_ListGroups(t *testing.T) {
	c := newConsoleClient(t)

	suggests := completeWords(c, splitWords("list bat"), "bat")
	if len(suggests) != 1 || suggests[0].Text != "battery" {
		t.Errorf("bat の補完 = %+v, want [battery]", suggests)
	}
}

func TestCompleteWords_NoCandidates(t *testing.T) {
	c := newConsoleClient(t)

	// 未知のコマンドには候補なし
	if suggests := completeWords(c, splitWords("bogus "), ""); len(suggests) != 0 {
		t.Errorf("未知のコマンドの補完 = %+v, want []", suggests)
	}

	// dump は引数を取らないので候補なし
	if suggests := completeWords(c, splitWords("dump "), ""); len(suggests) != 0 {
		t.Errorf("dump の補完 = %+v, want []", suggests)
	}
}

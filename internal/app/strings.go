package app

import (
	sdk "stocktool/sdk/chat"
)

// uiStrings holds the localizable status bar and help text.
type uiStrings struct {
	Ready       string
	Streaming   string
	Cancelled   string
	Deleted     string
	ErrorPrefix string
	RetryHint   string
	Waiting     string
	Help        string
	Welcome     string
}

func stringsFor(locale sdk.Locale) uiStrings {
	if locale == sdk.LocaleJA {
		return uiStrings{
			Ready:       "待機中",
			Streaming:   "応答を受信中...",
			Cancelled:   "キャンセルしました",
			Deleted:     "会話を削除しました",
			ErrorPrefix: "エラー",
			RetryHint:   "Ctrl+R: 再試行",
			Waiting:     "応答を待っています... (Esc でキャンセル)",
			Help:        "Enter: 送信 • Ctrl+L: 新しい会話 • Ctrl+D: 削除 • Ctrl+C: 終了",
			Welcome:     "銘柄、市場ニュース、ポートフォリオについて質問してください。",
		}
	}
	return uiStrings{
		Ready:       "Ready",
		Streaming:   "Streaming...",
		Cancelled:   "Cancelled",
		Deleted:     "Conversation deleted",
		ErrorPrefix: "Error",
		RetryHint:   "Ctrl+R: retry",
		Waiting:     "Waiting for response... (Esc to cancel)",
		Help:        "Enter: send • Ctrl+L: new conversation • Ctrl+D: delete • Ctrl+C: quit",
		Welcome:     "Ask about a ticker, market news, or your portfolio to get started.",
	}
}

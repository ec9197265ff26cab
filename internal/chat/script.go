package chat

import "fmt"

// Script es la respuesta simulada del agente: textos de relleno que se
// muestran en el placeholder y una plantilla final que recibe el texto del
// usuario.
type Script struct {
	Initial  string
	Steps    []string
	Final    string
	Fallback string
}

// DefaultScript es el guion de la demo.
var DefaultScript = Script{
	Initial: "考え中...",
	Steps: []string{
		"質問内容を確認しています...",
		"関連する情報を整理しています...",
		"回答を作成しています...",
	},
	Final:    "「%s」について回答いたします。...",
	Fallback: "申し訳ありません。エラーが発生しました。もう一度お試しください。",
}

// Sequence devuelve los N textos del guion; el último ya incluye input.
func (s Script) Sequence(input string) []string {
	seq := make([]string, 0, len(s.Steps)+1)
	seq = append(seq, s.Steps...)
	return append(seq, fmt.Sprintf(s.Final, input))
}

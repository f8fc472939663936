package token

import "testing"

func TestCreateToken(t *testing.T) {
	tests := []struct {
		name      string
		tokenType TokenType
		want      Token
	}{
		{
			name:      "assign token carries its mapped lexeme",
			tokenType: ASSIGN,
			want:      Token{TokenType: ASSIGN, Lexeme: "=", Path: "main.lumen", Line: 1, Column: 1},
		},
		{
			name:      "left bracket token carries its mapped lexeme",
			tokenType: LARR,
			want:      Token{TokenType: LARR, Lexeme: "[", Path: "main.lumen", Line: 2, Column: 3},
		},
		{
			name:      "logical and token carries its mapped lexeme",
			tokenType: LOGICAL_AND,
			want:      Token{TokenType: LOGICAL_AND, Lexeme: "&&", Path: "main.lumen", Line: 1, Column: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CreateToken(tt.tokenType, tt.want.Path, tt.want.Line, tt.want.Column)
			if got != tt.want {
				t.Errorf("CreateToken() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCreateLiteralToken(t *testing.T) {
	got := CreateLiteralToken(FLOAT, 3.5, "3.5", "main.lumen", 4, 2)
	want := Token{TokenType: FLOAT, Lexeme: "3.5", Literal: 3.5, Path: "main.lumen", Line: 4, Column: 2}

	if got != want {
		t.Errorf("CreateLiteralToken() = %+v, want %+v", got, want)
	}
}

func TestKeyWordsCoversReservedWords(t *testing.T) {
	reserved := []string{"fun", "while", "for", "let", "const", "return", "if", "else", "true", "false", "null", "include"}

	for _, word := range reserved {
		if _, ok := KeyWords[word]; !ok {
			t.Errorf("KeyWords missing reserved word %q", word)
		}
	}
}

func TestTokenString(t *testing.T) {
	tok := CreateLiteralToken(INT, int64(123), "123", "main.lumen", 3, 10)
	want := `Token {Type: INT, Value: "123"}`

	if got := tok.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

package quiz

import "github.com/madrasati/madrasati-api/internal/models"

// winningLines enumerates the rows, columns and diagonals of the board.
var winningLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// evaluate inspects a board and reports whether the match is over. It
// returns the winning symbol, models.WinnerDraw for a full board with no
// line, or an empty string while play continues. The check works over
// whatever symbols the players picked, not just X and O.
func evaluate(board [9]*models.PlayerSymbol) (string, bool) {
	for _, line := range winningLines {
		a, b, c := board[line[0]], board[line[1]], board[line[2]]
		if a != nil && b != nil && c != nil && *a == *b && *b == *c {
			return string(*a), true
		}
	}
	if boardFull(board) {
		return models.WinnerDraw, true
	}
	return "", false
}

func boardFull(board [9]*models.PlayerSymbol) bool {
	for _, cell := range board {
		if cell == nil {
			return false
		}
	}
	return true
}

package models

// PlayerSymbol is a board marker. More than the classic two symbols are
// allowed so players can pick decorative markers.
type PlayerSymbol string

const (
	SymbolX     PlayerSymbol = "X"
	SymbolO     PlayerSymbol = "O"
	SymbolStar  PlayerSymbol = "⭐"
	SymbolMoon  PlayerSymbol = "🌙"
	SymbolHeart PlayerSymbol = "❤️"
	SymbolGem   PlayerSymbol = "🔷"
)

// WinnerDraw is stored in XOGameState.Winner when the board fills with no line.
const WinnerDraw = "draw"

// GameStatus is the match lifecycle state.
type GameStatus string

const (
	GameWaitingForPlayers GameStatus = "waiting_for_players"
	GameInProgress        GameStatus = "in_progress"
	GameFinished          GameStatus = "finished"
)

// PointsPolicy decides who scores on a correct answer.
type PointsPolicy string

const (
	// PolicyWinnerTakesAll scores only the responder who claims the cell.
	PolicyWinnerTakesAll PointsPolicy = "winner_takes_all"
	// PolicyGrantAll scores every correct responder, claiming or not.
	PolicyGrantAll PointsPolicy = "grant_all"
)

// XOQuestion is immutable once created; edits create a new item.
type XOQuestion struct {
	ID                 string    `db:"id" json:"id"`
	PrincipalID        string    `db:"principal_id" json:"principal_id"`
	Grade              string    `db:"grade" json:"grade"`
	Subject            string    `db:"subject" json:"subject"`
	Chapter            string    `db:"chapter" json:"chapter,omitempty"`
	QuestionText       string    `db:"question_text" json:"question_text"`
	Options            [4]string `json:"options"`
	CorrectOptionIndex int       `db:"correct_option_index" json:"correct_option_index"`
	// CreatedBy is a teacher account id, or the literal "ai" tag.
	CreatedBy     string `db:"created_by" json:"created_by"`
	CreatorName   string `db:"creator_name" json:"creator_name,omitempty"`
	CreatorSchool string `db:"creator_school" json:"creator_school,omitempty"`
}

// AIAuthorTag marks AI-authored questions in CreatedBy.
const AIAuthorTag = "ai"

// XOGamePlayer is one occupied player slot.
type XOGamePlayer struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Symbol  PlayerSymbol `json:"symbol"`
	ClassID string       `json:"class_id,omitempty"`
	Section string       `json:"section,omitempty"`
}

// ChatMessage is an embedded match chat entry.
type ChatMessage struct {
	ID         string `json:"id"`
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name"`
	Text       string `json:"text"`
	Timestamp  int64  `json:"timestamp"`
}

// XOGameState is the authoritative realtime document for one match. All
// clients read and write it through compare-and-swap; the store version is
// tracked outside the document payload.
type XOGameState struct {
	ID          string     `json:"id"`
	PrincipalID string     `json:"principal_id"`
	Grade       string     `json:"grade"`
	Subject     string     `json:"subject"`
	Status      GameStatus `json:"status"`

	// Players holds exactly two slots; the second is nil in single-player
	// practice and before an opponent joins.
	Players [2]*XOGamePlayer `json:"players"`

	Board   [9]*PlayerSymbol `json:"board"`
	XIsNext bool             `json:"x_is_next"`
	// Winner is a symbol, WinnerDraw, or empty while undecided.
	Winner string                   `json:"winner,omitempty"`
	Scores map[PlayerSymbol]float64 `json:"scores"`

	Settings XOGameSettings `json:"settings"`

	CurrentQuestion    *XOQuestion `json:"current_question"`
	QuestionForSquare  *int        `json:"question_for_square"`
	QuestionTimerStart *int64      `json:"question_timer_start"`

	// UsedQuestionIDs keeps drawn questions out of later rounds.
	UsedQuestionIDs []string `json:"used_question_ids,omitempty"`
	// PendingAnswers holds the non-claiming player's provisional answer for
	// the bound question, keyed by player id. Resolved with the round.
	PendingAnswers map[string]int `json:"pending_answers,omitempty"`

	Chat []ChatMessage `json:"chat,omitempty"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// XOGameSettings is the per-subject match policy a teacher configures.
type XOGameSettings struct {
	PointsPolicy      PointsPolicy `json:"points_policy"`
	StartTime         string       `json:"start_time,omitempty"`
	EndTime           string       `json:"end_time,omitempty"`
	QuestionTimeLimit int          `json:"question_time_limit"`
	AllowSinglePlayer bool         `json:"allow_single_player"`
}

// XOGameScore is one leaderboard row for a subject board.
type XOGameScore struct {
	StudentID   string  `json:"student_id"`
	StudentName string  `json:"student_name"`
	ClassID     string  `json:"class_id,omitempty"`
	Section     string  `json:"section,omitempty"`
	Points      float64 `json:"points"`
}

// CreateQuestionRequest authors a new bank item. There is no update
// counterpart: edits go through create-and-replace.
type CreateQuestionRequest struct {
	Grade              string    `json:"grade" validate:"required,max=60"`
	Subject            string    `json:"subject" validate:"required,max=120"`
	Chapter            string    `json:"chapter" validate:"max=120"`
	QuestionText       string    `json:"question_text" validate:"required,max=500"`
	Options            [4]string `json:"options"`
	CorrectOptionIndex int       `json:"correct_option_index" validate:"gte=0,lte=3"`
}

// CreateMatchRequest opens a match in the caller's stage and subject.
type CreateMatchRequest struct {
	Grade        string         `json:"grade" validate:"required,max=60"`
	Subject      string         `json:"subject" validate:"required,max=120"`
	Symbol       PlayerSymbol   `json:"symbol" validate:"required"`
	Settings     XOGameSettings `json:"settings"`
	SinglePlayer bool           `json:"single_player"`
}

// JoinMatchRequest takes the second player slot.
type JoinMatchRequest struct {
	Symbol PlayerSymbol `json:"symbol" validate:"required"`
}

// DrawQuestionRequest binds a question to a board cell.
type DrawQuestionRequest struct {
	Cell int `json:"cell" validate:"gte=0,lte=8"`
}

// AnswerRequest answers the bound question for a cell.
type AnswerRequest struct {
	Cell        int `json:"cell" validate:"gte=0,lte=8"`
	OptionIndex int `json:"option_index" validate:"gte=0,lte=3"`
}

// ChatRequest posts a message to the match chat.
type ChatRequest struct {
	Text string `json:"text" validate:"required,max=300"`
}

// Challenge lifecycle states.
const (
	ChallengePending  = "pending"
	ChallengeAccepted = "accepted"
	ChallengeDeclined = "declined"
)

// XOChallenge invites a specific opponent into a match. Accepting one
// opens the match and records its id in GameID.
type XOChallenge struct {
	ID             string `json:"id"`
	PrincipalID    string `json:"principal_id"`
	ChallengerID   string `json:"challenger_id"`
	ChallengerName string `json:"challenger_name"`
	TargetID       string `json:"target_id"`
	Grade          string `json:"grade"`
	Subject        string `json:"subject"`
	// Status is pending, accepted or declined.
	Status    string `json:"status"`
	GameID    string `json:"game_id,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// CreateChallengeRequest invites a named opponent.
type CreateChallengeRequest struct {
	TargetID string `json:"target_id" validate:"required"`
	Grade    string `json:"grade" validate:"required,max=60"`
	Subject  string `json:"subject" validate:"required,max=120"`
}

// ChallengeOutcome pairs a resolved challenge with the match it opened,
// when it opened one.
type ChallengeOutcome struct {
	Challenge *XOChallenge `json:"challenge"`
	Match     *XOGameState `json:"match,omitempty"`
}

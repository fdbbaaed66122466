package dto

// EmailWebhook is an inbound email relay payload.
type EmailWebhook struct {
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	From     string `json:"from"`
	FromName string `json:"fromName"`
}

// TwitterWebhook is a mention relay payload.
type TwitterWebhook struct {
	TweetText      string `json:"tweet_text"`
	UserName       string `json:"user_name"`
	UserScreenName string `json:"user_screen_name"`
	TweetID        string `json:"tweet_id"`
}

// FacebookWebhook is a page message relay payload.
type FacebookWebhook struct {
	SenderName  string `json:"sender_name"`
	SenderID    string `json:"sender_id"`
	MessageText string `json:"message_text"`
	PageID      string `json:"page_id"`
}

// ChatWebhook is a chat widget payload.
type ChatWebhook struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	PageURL   string `json:"page_url"`
}

// GenericWebhook is the catch-all payload.
type GenericWebhook struct {
	Subject       string `json:"subject"`
	Message       string `json:"message"`
	Source        string `json:"source"`
	CustomerName  string `json:"customerName"`
	CustomerEmail string `json:"customerEmail"`
	CustomerPhone string `json:"customerPhone"`
}

package transport

// AddTaskRequest carries the same free text the bot accepts: "<description> ; <YYYY-MM-DD HH:MM>".
type AddTaskRequest struct {
	Text string `json:"text" validate:"required"`
}

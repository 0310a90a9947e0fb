package constants

// keys of the controller registry passed to routes.InitRouter
const (
	Articles = iota
	History
	Categories
	Auth
	Bitbucket
	Status
)

package vars

const (
	AppName = "mongo-top-tool"
	Version = "v1.0.0"
)

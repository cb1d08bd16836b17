// Package swagger provides API documentation
package swagger

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &struct {
	Version     string
	Host        string
	BasePath    string
	Schemes     []string
	Title       string
	Description string
}{
	Version:     "1.0",
	Host:        "",
	BasePath:    "/",
	Schemes:     []string{},
	Title:       "Gallery API",
	Description: "Media gallery service: feeds, uploads and album downloads",
}

// Run 'swag init -g cmd/server/server.go -o docs/swagger' to generate the full document.

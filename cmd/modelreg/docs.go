package main

// General API documentation for swaggo. Run `swag init -g cmd/modelreg/docs.go -o internal/httpapi/docs` to regenerate.
//
// @title           modelreg API
// @version         1.0
// @description     HTTP API for loading local LLM weights under caller-chosen ids and generating text with them.
//
// @contact.name   modelreg maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http

// Пакет generated — код, сгенерированный oapi-codegen из api/openapi.yaml.
// Файлы *.gen.go не редактируются вручную: после изменения контракта
// выполните go generate ./internal/api/generated.
package generated

//go:generate go run github.com/oapi-codegen/oapi-codegen/v2/cmd/oapi-codegen@v2.5.0 -generate types -package generated -o types.gen.go ../../../api/openapi.yaml
//go:generate go run github.com/oapi-codegen/oapi-codegen/v2/cmd/oapi-codegen@v2.5.0 -generate chi-server -package generated -o server.gen.go ../../../api/openapi.yaml
//go:generate go run github.com/oapi-codegen/oapi-codegen/v2/cmd/oapi-codegen@v2.5.0 -generate spec -package generated -o spec.gen.go ../../../api/openapi.yaml

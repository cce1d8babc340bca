// Package application contém os casos de uso (regras de aplicação) do rate limit.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Service.Decide(ctx, key, route) retorna um domain.Result
// (allow/deny + limit/remaining/reset).
package application

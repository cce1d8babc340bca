// Package ratelimit fornece os adapters HTTP (net/http) do rate limit de janela fixa.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: caso de uso (decisão allow/deny + estatística) sem net/http
//   - infra: implementações concretas (janela fixa em memória, stats em memória/Redis)
//   - ratelimit (este pacote): identidade do cliente, resposta 429 e middleware avulso
//
// Fluxo do middleware avulso:
//
//   1) Extrai a chave do cliente (header explícito ou headers de proxy)
//   2) Chama a camada application para obter a decisão
//   3) Se bloqueado, responde 429 com X-RateLimit-Limit/Remaining/Reset
//   4) Se permitido, chama o próximo handler
//
// O pipeline principal (pacote pipeline) reaproveita ClientIdentity e
// WriteTooManyRequests para o rate gate das rotas /api.
package ratelimit

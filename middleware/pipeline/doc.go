// Package pipeline compõe o middleware que roda na frente de toda requisição.
//
// Ordem fixa das etapas (cada uma pode encerrar a requisição):
//
//   1) normaliza o path (CleanPath) e classifica a rota (API / auth / protegida)
//   2) rate gate: só rotas /api; rotas de auth usam o limiter mais restrito.
//      Negado => 429 com X-RateLimit-* e nada mais
//   3) auth gate: rota protegida sem cookie de sessão => redirect para /sign-in
//   4) headers de segurança na resposta que segue adiante
//   5) renovação de sessão (GET/HEAD com cookie): reassina com +24h, ou apaga
//      o cookie quando o token não verifica (e redireciona se a rota é protegida)
//   6) próximo handler
//
// A decisão de sessão depende só da requisição, então é tomada antes do
// próximo handler rodar; num redirect o handler nem é chamado.
package pipeline

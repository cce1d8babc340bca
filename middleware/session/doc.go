// Package session cuida da sessão stateless guardada no cookie "session".
//
// O token é assinado por um Codec (JWTCodec usa HS256 via golang-jwt) e carrega
// claims arbitrárias mais um campo "expires". O pipeline HTTP usa três peças:
//
//   - Decide: função pura que escolhe renovar, limpar ou limpar+redirecionar
//   - Refresher: reassina o mesmo payload com expiração now+TTL
//   - SetCookie/ClearCookie: escrita do cookie na resposta
//
// Este pacote não valida credenciais nem acessa banco.
package session

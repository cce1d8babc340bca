// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - FixedWindow: contador de janela fixa por chave, em memória e com mutex
//   - MemoryStatsStore / RedisStatsStore: contagem de decisões allow/deny
//   - AsyncStatsStore: buffer + goroutine na frente de um store com I/O
package infra

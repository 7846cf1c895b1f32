// Package logger provee un logger Zap singleton con scoping por contexto.
//
// # Design Decisions
//
//   - Singleton: una sola instancia global inicializada con Init() al arrancar el hook.
//   - Context Scoping: cada dispatch lleva su propio logger "scoped" con campos
//     (run_id, unit, hook) sin crear un nuevo core.
//   - Salida: siempre stderr. El agente de la plataforma captura stderr del hook
//     y lo envía al debug-log; stdout queda libre para los comandos del CLI.
//   - Environments: "dev" usa consola con colores, "prod" usa JSON.
//
// # Usage
//
//	logger.Init(logger.Config{Env: os.Getenv("LOG_ENV"), Level: os.Getenv("LOG_LEVEL")})
//	defer logger.Sync()
//
//	log := logger.From(ctx)
//	log.Info("keystore regenerated", logger.Domain("broker"))
package logger

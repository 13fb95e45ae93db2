// Package telemetry 封装 OpenTelemetry SDK 初始化逻辑，
// 为 semant-rag 提供集中式的 TracerProvider 和 MeterProvider 配置。
// 编排器的请求 span 与工作流节点 span 均经由这里注册的 provider 导出。
// 当遥测功能禁用时，使用 noop 实现，不连接任何外部服务。
package telemetry

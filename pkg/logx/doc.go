// Package logx is the bot's logging layer on top of zerolog.
//
// Every record carries a timestamp, a level, the component that wrote it
// (the "comp" field) and a message. The Service fans records out to the
// console, an append-only file (bot.log by default) and, optionally, a
// Telegram chat for operators.
package logx
